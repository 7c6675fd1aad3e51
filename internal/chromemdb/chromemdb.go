package chromemdb

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"dochat/internal/helper"
	"dochat/internal/index"
	"dochat/internal/models"
)

// meta data will have page number, passage id and rune offset
const (
	metaPage  = "page"
	metaID    = "passage_id"
	metaStart = "start"
)

// VectorDBManager is an index.Index backed by an in-memory chromem-go
// collection. Each manager owns one collection; chromem always ranks by cosine
// similarity.
type VectorDBManager struct {
	mu             sync.RWMutex
	db             *chromem.DB
	collection     *chromem.Collection
	collectionName string
	passages       map[string]models.Passage
	dimension      int
	snapshotPath   string
	encryptionKey  string
	compress       bool
}

type Options struct {
	SnapshotPath  string
	EncryptionKey string
	Compress      bool
}

// NewVectorDBManager initializes a manager with a fresh, uniquely named collection.
func NewVectorDBManager(opts Options) (*VectorDBManager, error) {
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	return &VectorDBManager{
		db:             chromem.NewDB(),
		collectionName: "passages-" + id,
		snapshotPath:   opts.SnapshotPath,
		encryptionKey:  opts.EncryptionKey,
		compress:       opts.Compress,
	}, nil
}

// NewFactory returns an index.Factory producing chromem-backed indexes.
func NewFactory(opts Options) index.Factory {
	return func() (index.Index, error) { return NewVectorDBManager(opts) }
}

func (m *VectorDBManager) Build(ctx context.Context, passages []models.Passage, embeddings [][]float32) error {
	dim, err := index.CheckDimensions(passages, embeddings)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// build replaces everything: drop the old collection first
	if m.collection != nil {
		if err := m.db.DeleteCollection(m.collectionName); err != nil {
			return fmt.Errorf("failed to drop collection: %v", err)
		}
		m.collection = nil
	}

	c, err := m.db.GetOrCreateCollection(m.collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %v", err)
	}

	docs := make([]chromem.Document, len(passages))
	byID := make(map[string]models.Passage, len(passages))
	for i, p := range passages {
		// insertion order doubles as the document id so ties can be resolved
		id := strconv.Itoa(i)
		docs[i] = chromem.Document{
			ID:      id,
			Content: p.Content,
			Metadata: map[string]string{
				metaPage:  strconv.Itoa(p.Page),
				metaID:    strconv.Itoa(p.ID),
				metaStart: strconv.Itoa(p.Start),
			},
			Embedding: embeddings[i],
		}
		byID[id] = p
	}

	if len(docs) > 0 {
		if err := c.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("failed to add documents: %v", err)
		}
	}

	m.collection = c
	m.passages = byID
	m.dimension = dim
	log.Debug().Str("collection", m.collectionName).Int("documents", len(docs)).Msg("Built chromem collection")

	if m.snapshotPath != "" && len(docs) > 0 {
		if err := m.export(); err != nil {
			log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Index snapshot export failed")
		}
	}
	return nil
}

func (m *VectorDBManager) Search(ctx context.Context, query []float32, fetchK int) ([]index.Hit, error) {
	if fetchK <= 0 {
		return nil, fmt.Errorf("fetchK must be positive, got %d", fetchK)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.collection == nil || m.collection.Count() == 0 {
		return nil, models.ErrEmptyIndex
	}
	if len(query) != m.dimension {
		return nil, &models.DimensionMismatchError{Want: m.dimension, Got: len(query), Position: -1}
	}

	// chromem picks its top n arbitrarily among equal scores, so rank every
	// document and cut after ordering ties by insertion
	results, err := m.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: query,
		NResults:       m.collection.Count(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return insertionOrder(results[i]) < insertionOrder(results[j])
	})
	if len(results) > fetchK {
		results = results[:fetchK]
	}

	hits := make([]index.Hit, 0, len(results))
	for _, r := range results {
		p, ok := m.passages[r.ID]
		if !ok {
			return nil, fmt.Errorf("unknown document id %q in collection %s", r.ID, m.collectionName)
		}
		hits = append(hits, index.Hit{
			Passage:   p,
			Embedding: r.Embedding,
			Score:     float64(r.Similarity),
			Rank:      len(hits),
		})
	}
	return hits, nil
}

func insertionOrder(r chromem.Result) int {
	seq, err := strconv.Atoi(r.ID)
	if err != nil {
		return -1
	}
	return seq
}

func (m *VectorDBManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.collection == nil {
		return 0
	}
	return m.collection.Count()
}

// Similarity reports the metric chromem ranks by.
func (m *VectorDBManager) Similarity() index.Similarity {
	return index.Cosine
}

// Close deletes the collection.
func (m *VectorDBManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collection == nil {
		return nil
	}
	m.collection = nil
	m.passages = nil
	if err := m.db.DeleteCollection(m.collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}
	return nil
}

// export writes an encrypted snapshot of the collection. Callers hold m.mu.
func (m *VectorDBManager) export() error {
	if m.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if len(m.encryptionKey) != 32 {
		return fmt.Errorf("encryption key must be 32 bytes")
	}
	log.Debug().Str("collection", m.collectionName).Str("path", m.snapshotPath).Bool("compress", m.compress).Msg("Exporting collection")
	if err := m.db.ExportToFile(m.snapshotPath, m.compress, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to export database: %v", err)
	}
	return nil
}
