package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Log      LogConfig      `yaml:"log"`
	LLM      LLMConfig      `yaml:"llm"`
	EmbedLLM EmbedConfig    `yaml:"embed_llm"`
	RAG      RAGConfig      `yaml:"rag"`
	Index    IndexConfig    `yaml:"index"`
	Database DatabaseConfig `yaml:"database"`
	Upload   UploadConfig   `yaml:"upload"`
	Export   ExportConfig   `yaml:"export"`
	Preview  PreviewConfig  `yaml:"preview"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
	File   string `yaml:"file"`
}

// LLMConfig describes the generation backend.
type LLMConfig struct {
	Provider    string  `yaml:"provider"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Key         string  `yaml:"key"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// EmbedConfig describes the embedding provider.
type EmbedConfig struct {
	Provider  string `yaml:"provider"`
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	Key       string `yaml:"key"`
	Normalize bool   `yaml:"normalize"`
	BatchSize int    `yaml:"batch_size"`
	CacheDir  string `yaml:"cache_dir"`
}

type RAGConfig struct {
	ChunkSize        int      `yaml:"chunk_size"`
	ChunkOverlap     int      `yaml:"chunk_overlap"`
	Separators       []string `yaml:"separators"`
	K                int      `yaml:"k"`
	FetchK           int      `yaml:"fetch_k"`
	MMRLambda        float64  `yaml:"mmr_lambda"`
	SummaryQuery     string   `yaml:"summary_query"`
	SummaryPassages  int      `yaml:"summary_passages"`
	SummarySentences string   `yaml:"summary_sentences"`
}

type IndexConfig struct {
	Backend       string `yaml:"backend"` // memory, chromem or pgvector
	Metric        string `yaml:"metric"`  // cosine or dot
	SnapshotPath  string `yaml:"snapshot_path"`
	EncryptionKey string `yaml:"encryption_key"`
	Compress      bool   `yaml:"compress"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type UploadConfig struct {
	MaxFileSizeMB int      `yaml:"max_file_size_mb"`
	AllowedTypes  []string `yaml:"allowed_types"`
}

type ExportConfig struct {
	Dir             string   `yaml:"dir"`
	Formats         []string `yaml:"formats"`
	TimestampFormat string   `yaml:"timestamp_format"`
}

type PreviewConfig struct {
	Chars int `yaml:"chars"`
}

const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderFastEmbed = "fastembed"

	BackendMemory   = "memory"
	BackendChromem  = "chromem"
	BackendPGVector = "pgvector"

	MetricCosine = "cosine"
	MetricDot    = "dot"
)

var ExportFormats = []string{"txt", "json", "md", "html"}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "dochat", Version: "1.0.0"},
		Log: LogConfig{Level: "info", Format: "console"},
		LLM: LLMConfig{
			Provider:    ProviderOllama,
			BaseURL:     "http://localhost:11434",
			Model:       "llama3.1:8b-instruct-q5_K_M",
			Temperature: 0.2,
			TimeoutSecs: 60,
		},
		EmbedLLM: EmbedConfig{
			Provider:  ProviderOllama,
			BaseURL:   "http://localhost:11434",
			Model:     "nomic-embed-text",
			Normalize: true,
			BatchSize: 32,
			CacheDir:  ".fastembed",
		},
		RAG: RAGConfig{
			ChunkSize:        800,
			ChunkOverlap:     200,
			Separators:       []string{"\n\n", "\n", " ", ""},
			K:                4,
			FetchK:           8,
			MMRLambda:        0.5,
			SummaryQuery:     "summary main points key information",
			SummaryPassages:  6,
			SummarySentences: "3-4",
		},
		Index: IndexConfig{Backend: BackendMemory, Metric: MetricCosine},
		Upload: UploadConfig{
			MaxFileSizeMB: 50,
			AllowedTypes:  []string{".pdf"},
		},
		Export: ExportConfig{
			Dir:             "exports",
			Formats:         []string{"txt", "json"},
			TimestampFormat: "20060102_150405",
		},
		Preview: PreviewConfig{Chars: 500},
	}
}

// LoadConfig reads the yaml file at path on top of the defaults, then applies
// .env and DOCHAT_* environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	applyEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DOCHAT_OLLAMA_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("DOCHAT_EMBEDDING_MODEL"); v != "" {
		cfg.EmbedLLM.Model = v
	}
	if v := os.Getenv("DOCHAT_OLLAMA_HOST"); v != "" {
		if cfg.LLM.Provider == ProviderOllama {
			cfg.LLM.BaseURL = v
		}
		if cfg.EmbedLLM.Provider == ProviderOllama {
			cfg.EmbedLLM.BaseURL = v
		}
	}
	if v := os.Getenv("DOCHAT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("DOCHAT_INDEX_BACKEND"); v != "" {
		cfg.Index.Backend = v
	}
	if v := os.Getenv("DOCHAT_PG_DSN"); v != "" {
		cfg.Database.DSN = v
	}
}

// applyDefaults fills zero values left by a partial yaml file.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = def.LLM.Provider
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = def.LLM.TimeoutSecs
	}
	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = def.EmbedLLM.Provider
	}
	if cfg.EmbedLLM.BatchSize == 0 {
		cfg.EmbedLLM.BatchSize = def.EmbedLLM.BatchSize
	}
	if len(cfg.RAG.Separators) == 0 {
		cfg.RAG.Separators = def.RAG.Separators
	}
	if cfg.RAG.SummaryQuery == "" {
		cfg.RAG.SummaryQuery = def.RAG.SummaryQuery
	}
	if cfg.RAG.SummaryPassages == 0 {
		cfg.RAG.SummaryPassages = def.RAG.SummaryPassages
	}
	if cfg.RAG.SummarySentences == "" {
		cfg.RAG.SummarySentences = def.RAG.SummarySentences
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = def.Index.Backend
	}
	if cfg.Index.Metric == "" {
		cfg.Index.Metric = def.Index.Metric
	}
	if len(cfg.Upload.AllowedTypes) == 0 {
		cfg.Upload.AllowedTypes = def.Upload.AllowedTypes
	}
	if cfg.Export.Dir == "" {
		cfg.Export.Dir = def.Export.Dir
	}
	if len(cfg.Export.Formats) == 0 {
		cfg.Export.Formats = def.Export.Formats
	}
	if cfg.Export.TimestampFormat == "" {
		cfg.Export.TimestampFormat = def.Export.TimestampFormat
	}
	if cfg.Preview.Chars == 0 {
		cfg.Preview.Chars = def.Preview.Chars
	}
}

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []string

	if c.RAG.ChunkSize <= 0 {
		errs = append(errs, "rag.chunk_size must be positive")
	}
	if c.RAG.ChunkOverlap < 0 {
		errs = append(errs, "rag.chunk_overlap must not be negative")
	}
	if c.RAG.ChunkSize <= c.RAG.ChunkOverlap {
		errs = append(errs, "rag.chunk_size must be greater than rag.chunk_overlap")
	}
	if c.RAG.K <= 0 {
		errs = append(errs, "rag.k must be positive")
	}
	if c.RAG.K > c.RAG.FetchK {
		errs = append(errs, "rag.k must be less than or equal to rag.fetch_k")
	}
	if c.RAG.MMRLambda < 0 || c.RAG.MMRLambda > 1 {
		errs = append(errs, "rag.mmr_lambda must be between 0 and 1")
	}
	if c.Upload.MaxFileSizeMB <= 0 {
		errs = append(errs, "upload.max_file_size_mb must be positive")
	}

	switch c.LLM.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Sprintf("llm.provider %q is not supported", c.LLM.Provider))
	}
	switch c.EmbedLLM.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderFastEmbed:
	default:
		errs = append(errs, fmt.Sprintf("embed_llm.provider %q is not supported", c.EmbedLLM.Provider))
	}
	switch c.Index.Metric {
	case MetricCosine, MetricDot:
	default:
		errs = append(errs, fmt.Sprintf("index.metric %q is not supported", c.Index.Metric))
	}
	switch c.Index.Backend {
	case BackendMemory:
	case BackendChromem:
		if c.Index.Metric != MetricCosine {
			errs = append(errs, "index.backend chromem only supports the cosine metric")
		}
	case BackendPGVector:
		if c.Database.DSN == "" {
			errs = append(errs, "index.backend pgvector requires database.dsn")
		}
	default:
		errs = append(errs, fmt.Sprintf("index.backend %q is not supported", c.Index.Backend))
	}
	for _, f := range c.Export.Formats {
		if !IsExportFormat(f) {
			errs = append(errs, fmt.Sprintf("export format %q is not supported", f))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func IsExportFormat(format string) bool {
	for _, f := range ExportFormats {
		if f == format {
			return true
		}
	}
	return false
}

// MaxUploadBytes is the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Upload.MaxFileSizeMB) * 1024 * 1024
}
