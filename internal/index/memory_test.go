package index

import (
	"context"
	"errors"
	"testing"

	"dochat/internal/models"
)

func passages(n int) []models.Passage {
	ps := make([]models.Passage, n)
	for i := range ps {
		ps[i] = models.Passage{ID: i, Page: i, Content: string(rune('A' + i))}
	}
	return ps
}

func TestMemoryIndexSearchOrder(t *testing.T) {
	idx := NewMemoryIndex(Dot)
	vecs := [][]float32{
		{0.1, 0},
		{0.9, 0},
		{0.5, 0},
		{0.9, 0}, // ties with 1, inserted later
	}
	if err := idx.Build(context.Background(), passages(4), vecs); err != nil {
		t.Fatal(err)
	}

	hits, err := idx.Search(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	wantIDs := []int{1, 3, 2}
	if len(hits) != len(wantIDs) {
		t.Fatalf("expected %d hits, got %d", len(wantIDs), len(hits))
	}
	for i, id := range wantIDs {
		if hits[i].Passage.ID != id {
			t.Errorf("hit %d = passage %d, want %d", i, hits[i].Passage.ID, id)
		}
		if hits[i].Rank != i {
			t.Errorf("hit %d has rank %d", i, hits[i].Rank)
		}
	}

	all, err := idx.Search(context.Background(), []float32{1, 0}, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("fetchK above size should return everything, got %d", len(all))
	}
}

func TestMemoryIndexBuildReplaces(t *testing.T) {
	idx := NewMemoryIndex(Cosine)
	ctx := context.Background()
	if err := idx.Build(ctx, passages(3), [][]float32{{1, 0}, {0, 1}, {1, 1}}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Build(ctx, passages(1), [][]float32{{1, 0, 0}}); err != nil {
		t.Fatal(err)
	}
	if idx.Len() != 1 {
		t.Errorf("expected 1 entry after rebuild, got %d", idx.Len())
	}
	if _, err := idx.Search(ctx, []float32{1, 0, 0}, 2); err != nil {
		t.Errorf("search with the new dimension failed: %v", err)
	}
}

func TestMemoryIndexErrors(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(nil)

	if _, err := idx.Search(ctx, []float32{1}, 1); !errors.Is(err, models.ErrEmptyIndex) {
		t.Errorf("expected ErrEmptyIndex, got %v", err)
	}

	err := idx.Build(ctx, passages(2), [][]float32{{1, 0}, {1, 0, 0}})
	var dimErr *models.DimensionMismatchError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected DimensionMismatchError, got %v", err)
	}
	if dimErr.Want != 2 || dimErr.Got != 3 || dimErr.Position != 1 {
		t.Errorf("unexpected mismatch details %+v", dimErr)
	}

	if err := idx.Build(ctx, passages(2), [][]float32{{1, 0}}); err == nil {
		t.Error("expected error for missing embeddings")
	}

	if err := idx.Build(ctx, passages(1), [][]float32{{1, 0}}); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Search(ctx, []float32{1, 0, 0}, 1); !errors.As(err, &dimErr) {
		t.Errorf("expected DimensionMismatchError for query, got %v", err)
	}
	if _, err := idx.Search(ctx, []float32{1, 0}, 0); err == nil {
		t.Error("expected error for fetchK=0")
	}
}

func TestSimilarityFor(t *testing.T) {
	for _, metric := range []string{"cosine", "dot", ""} {
		if _, err := SimilarityFor(metric); err != nil {
			t.Errorf("%q: unexpected error %v", metric, err)
		}
	}
	if _, err := SimilarityFor("hamming"); err == nil {
		t.Error("expected error for unknown metric")
	}
	if got := Cosine([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Errorf("cosine with zero vector = %f", got)
	}
}
