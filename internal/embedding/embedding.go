package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"dochat/internal/config"
	"dochat/internal/models"
)

// NewEmbedder creates the embedding provider selected by cfg.Provider. When
// cfg.Normalize is set every vector is L2-normalized, so inner product equals
// cosine similarity.
func NewEmbedder(cfg *config.EmbedConfig) (embeddings.Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        cfg.Provider,
		"base_url":        cfg.BaseURL,
		"embedding_model": cfg.Model,
	}).Msg("Creating embedder")

	var (
		embedder embeddings.Embedder
		err      error
	)
	switch cfg.Provider {
	case config.ProviderOllama:
		embedder, err = NewOllamaEmbedder(cfg)
	case config.ProviderOpenAI:
		embedder, err = NewOpenAIEmbedder(cfg)
	case config.ProviderFastEmbed:
		embedder, err = NewFastEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Normalize {
		embedder = Normalized(embedder)
	}
	return embedder, nil
}

// new ollama embedder
func NewOllamaEmbedder(cfg *config.EmbedConfig) (*embeddings.EmbedderImpl, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("initialize ollama embedding client: %w", err)
	}
	return newEmbedderImpl(llm, cfg.BatchSize)
}

// NewOpenAIEmbedder talks to any OpenAI-compatible embeddings endpoint.
func NewOpenAIEmbedder(cfg *config.EmbedConfig) (*embeddings.EmbedderImpl, error) {
	opts := []openai.Option{openai.WithEmbeddingModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Key != "" {
		opts = append(opts, openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize openai embedding client: %w", err)
	}
	return newEmbedderImpl(llm, cfg.BatchSize)
}

func newEmbedderImpl(client embeddings.EmbedderClient, batchSize int) (*embeddings.EmbedderImpl, error) {
	opts := []embeddings.Option{embeddings.WithStripNewLines(false)}
	if batchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(batchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return embedder, nil
}

// GenerateEmbeddings embeds the passages in batches, reporting progress after each batch.
func GenerateEmbeddings(ctx context.Context, embedder embeddings.Embedder, passages []models.Passage, batchSize int, progress func(done, total int)) ([][]float32, error) {
	if len(passages) == 0 {
		log.Info().Msg("No passages to embed")
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = len(passages)
	}

	vectors := make([][]float32, 0, len(passages))
	for start := 0; start < len(passages); start += batchSize {
		end := min(start+batchSize, len(passages))
		texts := make([]string, 0, end-start)
		for _, p := range passages[start:end] {
			texts = append(texts, p.Content)
		}

		batch, err := embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed passages %d-%d: %w", start, end-1, err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embed passages %d-%d: got %d vectors for %d texts", start, end-1, len(batch), len(texts))
		}
		vectors = append(vectors, batch...)

		if progress != nil {
			progress(len(vectors), len(passages))
		}
	}

	log.Debug().Int("passages", len(passages)).Int("dim", len(vectors[0])).Msg("Generated embeddings")
	return vectors, nil
}

type normalized struct {
	embeddings.Embedder
}

// Normalized wraps e so that every returned vector has unit length.
func Normalized(e embeddings.Embedder) embeddings.Embedder {
	if _, ok := e.(normalized); ok {
		return e
	}
	return normalized{Embedder: e}
}

func (n normalized) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := n.Embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i := range vecs {
		vecs[i] = Normalize(vecs[i])
	}
	return vecs, nil
}

func (n normalized) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := n.Embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	return Normalize(vec), nil
}

// Close releases the wrapped embedder if it holds resources.
func (n normalized) Close() error {
	return Close(n.Embedder)
}

// Normalize returns a unit-length copy of v. A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Close calls Close on embedders that own native resources.
func Close(e embeddings.Embedder) error {
	if c, ok := e.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
