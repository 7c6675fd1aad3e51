package index

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"dochat/internal/models"
)

// MemoryIndex is a brute-force in-process index.
type MemoryIndex struct {
	mu         sync.RWMutex
	similarity Similarity
	dimension  int
	passages   []models.Passage
	vectors    [][]float32
}

func NewMemoryIndex(sim Similarity) *MemoryIndex {
	if sim == nil {
		sim = Cosine
	}
	return &MemoryIndex{similarity: sim}
}

func (m *MemoryIndex) Build(ctx context.Context, passages []models.Passage, embeddings [][]float32) error {
	dim, err := CheckDimensions(passages, embeddings)
	if err != nil {
		return err
	}

	ps := make([]models.Passage, len(passages))
	copy(ps, passages)
	vs := make([][]float32, len(embeddings))
	for i, e := range embeddings {
		vs[i] = append([]float32(nil), e...)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimension = dim
	m.passages = ps
	m.vectors = vs
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, query []float32, fetchK int) ([]Hit, error) {
	if fetchK <= 0 {
		return nil, fmt.Errorf("fetchK must be positive, got %d", fetchK)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.vectors) == 0 {
		return nil, models.ErrEmptyIndex
	}
	if len(query) != m.dimension {
		return nil, &models.DimensionMismatchError{Want: m.dimension, Got: len(query), Position: -1}
	}

	hits := make([]Hit, len(m.vectors))
	for i, v := range m.vectors {
		hits[i] = Hit{Passage: m.passages[i], Embedding: v, Score: m.similarity(query, v)}
	}
	// stable: equal scores keep insertion order
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if fetchK < len(hits) {
		hits = hits[:fetchK]
	}
	for i := range hits {
		hits[i].Rank = i
	}
	return hits, nil
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

// Similarity exposes the metric used by Search, for re-ranking.
func (m *MemoryIndex) Similarity() Similarity {
	return m.similarity
}

func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.passages = nil
	m.vectors = nil
	return nil
}
