package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.RAG.ChunkSize != 800 || cfg.RAG.ChunkOverlap != 200 {
		t.Errorf("expected chunking 800/200, got %d/%d", cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	}
	if cfg.RAG.K != 4 || cfg.RAG.FetchK != 8 {
		t.Errorf("expected k=4 fetch_k=8, got %d/%d", cfg.RAG.K, cfg.RAG.FetchK)
	}
	if cfg.RAG.MMRLambda != 0.5 {
		t.Errorf("expected mmr_lambda=0.5, got %f", cfg.RAG.MMRLambda)
	}
	if cfg.LLM.Model != "llama3.1:8b-instruct-q5_K_M" {
		t.Errorf("unexpected default model %q", cfg.LLM.Model)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must be valid: %v", err)
	}
}

func TestLoadConfig_NonExistent(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.Index.Backend != BackendMemory {
		t.Errorf("expected memory backend, got %q", cfg.Index.Backend)
	}
}

func TestLoadConfig_PartialYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")

	content := `
llm:
  model: mistral:7b-instruct
rag:
  chunk_size: 400
  chunk_overlap: 50
  k: 2
  fetch_k: 6
  mmr_lambda: 0.7
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.Model != "mistral:7b-instruct" {
		t.Errorf("expected model override, got %q", cfg.LLM.Model)
	}
	if cfg.RAG.ChunkSize != 400 || cfg.RAG.ChunkOverlap != 50 {
		t.Errorf("expected chunking 400/50, got %d/%d", cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	}
	if cfg.LLM.Provider != ProviderOllama {
		t.Errorf("expected provider default to survive, got %q", cfg.LLM.Provider)
	}
	if len(cfg.RAG.Separators) != 4 {
		t.Errorf("expected default separators, got %q", cfg.RAG.Separators)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DOCHAT_OLLAMA_MODEL", "llama3.1:70b")
	t.Setenv("DOCHAT_EMBEDDING_MODEL", "mxbai-embed-large")
	t.Setenv("DOCHAT_OLLAMA_HOST", "http://gpu-box:11434")
	t.Setenv("DOCHAT_LOG_LEVEL", "debug")

	cfg, err := LoadConfig("missing.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.Model != "llama3.1:70b" {
		t.Errorf("LLM model = %q", cfg.LLM.Model)
	}
	if cfg.EmbedLLM.Model != "mxbai-embed-large" {
		t.Errorf("embedding model = %q", cfg.EmbedLLM.Model)
	}
	if cfg.LLM.BaseURL != "http://gpu-box:11434" || cfg.EmbedLLM.BaseURL != "http://gpu-box:11434" {
		t.Errorf("host override not applied: %q %q", cfg.LLM.BaseURL, cfg.EmbedLLM.BaseURL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("DOCHAT_OLLAMA_MODEL", "")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("DOCHAT_OLLAMA_MODEL=phi3:mini\n"), 0644); err != nil {
		t.Fatal(err)
	}
	// godotenv never overrides variables that are already set, even when empty.
	os.Unsetenv("DOCHAT_OLLAMA_MODEL")

	cfg, err := LoadConfig("missing.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.Model != "phi3:mini" {
		t.Errorf("expected model from .env, got %q", cfg.LLM.Model)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "overlap not smaller than size",
			mutate:  func(c *Config) { c.RAG.ChunkOverlap = c.RAG.ChunkSize },
			wantErr: "chunk_size must be greater than rag.chunk_overlap",
		},
		{
			name:    "k above fetch_k",
			mutate:  func(c *Config) { c.RAG.K = 10 },
			wantErr: "rag.k must be less than or equal to rag.fetch_k",
		},
		{
			name:    "lambda out of range",
			mutate:  func(c *Config) { c.RAG.MMRLambda = 1.5 },
			wantErr: "mmr_lambda must be between 0 and 1",
		},
		{
			name:    "non-positive upload size",
			mutate:  func(c *Config) { c.Upload.MaxFileSizeMB = 0 },
			wantErr: "max_file_size_mb must be positive",
		},
		{
			name: "chromem with dot metric",
			mutate: func(c *Config) {
				c.Index.Backend = BackendChromem
				c.Index.Metric = MetricDot
			},
			wantErr: "only supports the cosine metric",
		},
		{
			name:    "pgvector without dsn",
			mutate:  func(c *Config) { c.Index.Backend = BackendPGVector },
			wantErr: "requires database.dsn",
		},
		{
			name:    "unknown export format",
			mutate:  func(c *Config) { c.Export.Formats = []string{"pdf"} },
			wantErr: `export format "pdf"`,
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.EmbedLLM.Provider = "huggingface" },
			wantErr: `embed_llm.provider "huggingface"`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}
