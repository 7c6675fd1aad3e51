package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"dochat/internal/index"
	"dochat/internal/models"
)

// Retriever embeds a query, fetches fetchK candidates from the index and
// re-ranks them with MMR down to k. It never modifies the index.
type Retriever struct {
	embedder embeddings.Embedder
	index    index.Index
	sim      index.Similarity
	k        int
	fetchK   int
	lambda   float64
}

func NewRetriever(embedder embeddings.Embedder, idx index.Index, k, fetchK int, lambda float64) (*Retriever, error) {
	if k <= 0 || k > fetchK {
		return nil, fmt.Errorf("invalid retriever settings: k=%d fetch_k=%d", k, fetchK)
	}
	if lambda < 0 || lambda > 1 {
		return nil, fmt.Errorf("mmr lambda %v is outside [0, 1]", lambda)
	}

	sim := index.Cosine
	if s, ok := idx.(interface{ Similarity() index.Similarity }); ok {
		sim = s.Similarity()
	}
	return &Retriever{embedder: embedder, index: idx, sim: sim, k: k, fetchK: fetchK, lambda: lambda}, nil
}

// Retrieve returns up to k passages for query, most relevant first.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]index.Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.ErrInvalidQuery
	}

	queryEmbedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := r.index.Search(ctx, queryEmbedding, r.fetchK)
	if err != nil {
		return nil, err
	}

	hits := index.MMR(candidates, r.k, r.lambda, r.sim)
	log.Debug().Int("candidates", len(candidates)).Int("selected", len(hits)).Msg("Retrieved passages")
	return hits, nil
}

// Passages strips search metadata from hits.
func Passages(hits []index.Hit) []models.Passage {
	out := make([]models.Passage, len(hits))
	for i, h := range hits {
		out[i] = h.Passage
	}
	return out
}
