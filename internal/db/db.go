package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"dochat/internal/config"
	"dochat/internal/helper"
	"dochat/internal/index"
	"dochat/internal/models"
)

type passageRow struct {
	bun.BaseModel `bun:"table:passages,alias:p"`
	Seq           int             `bun:"seq,pk"`
	PassageID     int             `bun:"passage_id,notnull"`
	Page          int             `bun:"page,notnull"`
	Start         int             `bun:"start_offset,notnull"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,type:vector,notnull"`
}

type searchRow struct {
	passageRow
	Distance float64 `bun:"distance"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}
	dsn := cfg.DSN
	if !strings.Contains(dsn, "sslmode=") {
		if strings.Contains(dsn, "?") {
			dsn += "&sslmode=disable"
		} else {
			dsn += "?sslmode=disable"
		}
	}
	opts := []pgdriver.Option{pgdriver.WithDSN(dsn)}
	if cfg.Password != "" {
		opts = append(opts, pgdriver.WithPassword(cfg.Password))
	}
	return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
}

// PGVectorIndex is an index.Index stored in a private pgvector table.
// Every index gets its own table, dropped again by Close.
type PGVectorIndex struct {
	mu        sync.RWMutex
	db        *bun.DB
	table     string
	metric    string
	sim       index.Similarity
	dimension int
	count     int
	created   bool
}

func NewPGVectorIndex(db *bun.DB, metric string) (*PGVectorIndex, error) {
	sim, err := index.SimilarityFor(metric)
	if err != nil {
		return nil, err
	}
	if metric == "" {
		metric = config.MetricCosine
	}
	id, err := helper.GenerateUUID()
	if err != nil {
		return nil, err
	}
	return &PGVectorIndex{
		db:     db,
		table:  "passages_" + strings.ReplaceAll(id, "-", ""),
		metric: metric,
		sim:    sim,
	}, nil
}

// NewFactory returns an index.Factory creating pgvector indexes on db.
func NewFactory(db *bun.DB, metric string) (index.Factory, error) {
	if _, err := index.SimilarityFor(metric); err != nil {
		return nil, err
	}
	return func() (index.Index, error) { return NewPGVectorIndex(db, metric) }, nil
}

func (p *PGVectorIndex) Build(ctx context.Context, passages []models.Passage, embeddings [][]float32) error {
	dim, err := index.CheckDimensions(passages, embeddings)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.drop(ctx); err != nil {
		return err
	}
	if len(passages) == 0 {
		p.dimension, p.count = 0, 0
		return nil
	}

	err = p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("CREATE EXTENSION IF NOT EXISTS vector").Exec(ctx); err != nil {
			return fmt.Errorf("failed to enable pgvector: %w", err)
		}
		if _, err := tx.NewRaw(`CREATE TABLE ? (
			seq integer PRIMARY KEY,
			passage_id integer NOT NULL,
			page integer NOT NULL,
			start_offset integer NOT NULL,
			content text NOT NULL,
			embedding vector(?) NOT NULL
		)`, bun.Ident(p.table), dim).Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table %s: %w", p.table, err)
		}

		rows := make([]passageRow, len(passages))
		for i, ps := range passages {
			rows[i] = passageRow{
				Seq:       i,
				PassageID: ps.ID,
				Page:      ps.Page,
				Start:     ps.Start,
				Content:   ps.Content,
				Embedding: pgvector.NewVector(embeddings[i]),
			}
		}
		if _, err := tx.NewInsert().Model(&rows).ModelTableExpr("?", bun.Ident(p.table)).Exec(ctx); err != nil {
			return fmt.Errorf("failed to store passages: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.created = true
	p.dimension = dim
	p.count = len(passages)
	log.Debug().Str("table", p.table).Int("passages", p.count).Int("dimension", dim).Msg("Built pgvector index")
	return nil
}

func (p *PGVectorIndex) Search(ctx context.Context, query []float32, fetchK int) ([]index.Hit, error) {
	if fetchK <= 0 {
		return nil, fmt.Errorf("fetchK must be positive, got %d", fetchK)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.count == 0 {
		return nil, models.ErrEmptyIndex
	}
	if len(query) != p.dimension {
		return nil, &models.DimensionMismatchError{Want: p.dimension, Got: len(query), Position: -1}
	}

	// <=> is cosine distance, <#> is the negated inner product
	op := "<=>"
	if p.metric == config.MetricDot {
		op = "<#>"
	}
	var rows []searchRow
	err := p.db.NewRaw(
		"SELECT seq, passage_id, page, start_offset, content, embedding, embedding "+op+" ?::vector AS distance FROM ? ORDER BY distance, seq LIMIT ?",
		pgvector.NewVector(query), bun.Ident(p.table), fetchK,
	).Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", p.table, err)
	}

	hits := make([]index.Hit, len(rows))
	for i, r := range rows {
		hits[i] = index.Hit{
			Passage: models.Passage{
				ID:      r.PassageID,
				Page:    r.Page,
				Start:   r.Start,
				Content: r.Content,
			},
			Embedding: r.Embedding.Slice(),
			Score:     p.score(r.Distance),
			Rank:      i,
		}
	}
	return hits, nil
}

func (p *PGVectorIndex) score(distance float64) float64 {
	if p.metric == config.MetricDot {
		return -distance
	}
	return 1 - distance
}

func (p *PGVectorIndex) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.count
}

func (p *PGVectorIndex) Similarity() index.Similarity {
	return p.sim
}

// Close drops the table. The shared *bun.DB stays open.
func (p *PGVectorIndex) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count = 0
	return p.drop(context.Background())
}

// drop table. Callers hold p.mu.
func (p *PGVectorIndex) drop(ctx context.Context) error {
	if !p.created {
		return nil
	}
	if _, err := p.db.NewDropTable().Table(p.table).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", p.table, err)
	}
	p.created = false
	return nil
}
