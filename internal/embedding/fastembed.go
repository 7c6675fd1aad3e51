package embedding

import (
	"context"
	"fmt"
	"runtime"

	fastembed "github.com/anush008/fastembed-go"

	"dochat/internal/config"
)

// FastEmbedder runs a sentence-transformer ONNX model in process.
type FastEmbedder struct {
	m         *fastembed.FlagEmbedding
	batchSize int
}

func NewFastEmbedder(cfg *config.EmbedConfig) (*FastEmbedder, error) {
	showProgress := false
	m, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                fastEmbedModel(cfg.Model),
		CacheDir:             cfg.CacheDir,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize fastembed model %q: %w", cfg.Model, err)
	}

	bs := cfg.BatchSize
	if bs <= 0 || bs > 4*runtime.GOMAXPROCS(0) {
		bs = 4 * runtime.GOMAXPROCS(0)
	}
	return &FastEmbedder{m: m, batchSize: bs}, nil
}

func fastEmbedModel(name string) fastembed.EmbeddingModel {
	switch name {
	case "", "all-MiniLM-L6-v2", "sentence-transformers/all-MiniLM-L6-v2":
		return fastembed.AllMiniLML6V2
	case "bge-small-en-v1.5", "BAAI/bge-small-en-v1.5":
		return fastembed.BGESmallENV15
	case "bge-base-en-v1.5", "BAAI/bge-base-en-v1.5":
		return fastembed.BGEBaseENV15
	default:
		return fastembed.EmbeddingModel(name)
	}
}

func (e *FastEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := e.m.PassageEmbed(texts, e.batchSize)
	if err != nil {
		return nil, fmt.Errorf("passage embed: %w", err)
	}
	return out, nil
}

func (e *FastEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.m.QueryEmbed(text)
}

func (e *FastEmbedder) Close() error {
	if e.m != nil {
		e.m.Destroy()
	}
	return nil
}
