package index

import (
	"context"
	"fmt"

	"dochat/internal/config"
	"dochat/internal/models"
)

// Index stores passage embeddings and answers nearest-neighbour queries.
// An Index is built once and then only read; a new document gets a new Index.
type Index interface {
	// Build loads passages and their embeddings, replacing previous contents.
	Build(ctx context.Context, passages []models.Passage, embeddings [][]float32) error
	// Search returns up to fetchK hits ordered by descending similarity,
	// ties broken by insertion order.
	Search(ctx context.Context, query []float32, fetchK int) ([]Hit, error)
	Len() int
	Close() error
}

// Hit is a search result. Rank is the 0-based position in the search order.
type Hit struct {
	Passage   models.Passage
	Embedding []float32
	Score     float64
	Rank      int
}

// CheckDimensions verifies that every embedding has the same non-zero length
// and that there is one embedding per passage. It returns that length.
func CheckDimensions(passages []models.Passage, embeddings [][]float32) (int, error) {
	if len(passages) != len(embeddings) {
		return 0, fmt.Errorf("got %d embeddings for %d passages", len(embeddings), len(passages))
	}
	if len(embeddings) == 0 {
		return 0, nil
	}
	dim := len(embeddings[0])
	if dim == 0 {
		return 0, &models.DimensionMismatchError{Want: 1, Got: 0, Position: 0}
	}
	for i, e := range embeddings {
		if len(e) != dim {
			return 0, &models.DimensionMismatchError{Want: dim, Got: len(e), Position: i}
		}
	}
	return dim, nil
}

// Factory creates empty indexes of one configured kind.
type Factory func() (Index, error)

// NewMemoryFactory returns a Factory for in-process indexes using metric.
func NewMemoryFactory(metric string) (Factory, error) {
	sim, err := SimilarityFor(metric)
	if err != nil {
		return nil, err
	}
	return func() (Index, error) { return NewMemoryIndex(sim), nil }, nil
}

// SimilarityFor maps a configured metric name to its similarity function.
func SimilarityFor(metric string) (Similarity, error) {
	switch metric {
	case config.MetricCosine, "":
		return Cosine, nil
	case config.MetricDot:
		return Dot, nil
	default:
		return nil, fmt.Errorf("unsupported similarity metric %q", metric)
	}
}
