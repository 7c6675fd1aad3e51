package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"dochat/internal/chromemdb"
	"dochat/internal/config"
	"dochat/internal/db"
	"dochat/internal/embedding"
	"dochat/internal/export"
	"dochat/internal/index"
	"dochat/internal/llmservice"
	"dochat/internal/parser"
	"dochat/internal/rag"
	"dochat/internal/session"
)

// app is everything a command needs, built from the loaded config.
type app struct {
	session  *session.Session
	exporter *export.Exporter
	cleanup  []func()
}

func (a *app) Close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{exporter: export.New(cfg.Export)}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	a.cleanup = append(a.cleanup, func() { embedding.Close(embedder) })

	llm, err := llmservice.NewLLM(&cfg.LLM)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize llm: %w", err)
	}

	factory, err := a.indexFactory(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.session, err = session.New(cfg, session.Deps{
		Extractor:    parser.NewPDFExtractor(),
		Embedder:     embedder,
		Generator:    rag.NewGenerator(llm, &cfg.LLM, cfg.RAG.SummarySentences),
		IndexFactory: factory,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) indexFactory(cfg *config.Config) (index.Factory, error) {
	switch cfg.Index.Backend {
	case config.BackendMemory:
		return index.NewMemoryFactory(cfg.Index.Metric)
	case config.BackendChromem:
		return chromemdb.NewFactory(chromemdb.Options{
			SnapshotPath:  cfg.Index.SnapshotPath,
			EncryptionKey: cfg.Index.EncryptionKey,
			Compress:      cfg.Index.Compress,
		}), nil
	case config.BackendPGVector:
		dbClient, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		dbInstance := db.NewDB(dbClient, cfg.Database.Debug)
		a.cleanup = append(a.cleanup, func() { dbInstance.Close() })
		return db.NewFactory(dbInstance, cfg.Index.Metric)
	default:
		return nil, fmt.Errorf("unsupported index backend %q", cfg.Index.Backend)
	}
}

// load uploads path with a progress bar on stderr.
func (a *app) load(ctx context.Context, path string) (session.PageView, error) {
	var bar *progressbar.ProgressBar
	a.session.OnProgress(func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionThrottle(50*time.Millisecond),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
			)
		}
		bar.Set(done)
	})
	defer a.session.OnProgress(nil)

	status, view, err := a.session.Upload(ctx, path)
	if err != nil {
		return view, err
	}
	log.Info().Str("status", status).Msg("Document ready")
	return view, nil
}

// warnIfOllamaDown logs a hint when a configured Ollama server is missing a model.
func warnIfOllamaDown(ctx context.Context, cfg *config.Config) {
	if cfg.LLM.Provider != config.ProviderOllama {
		return
	}
	status, err := llmservice.CheckOllama(ctx, cfg.LLM.BaseURL, cfg.LLM.Model)
	if err != nil {
		log.Warn().Err(err).Msg("Ollama check failed")
		return
	}
	if !status.Reachable {
		log.Warn().Str("url", cfg.LLM.BaseURL).Msg("Ollama is not running; start it with 'ollama serve'")
		return
	}
	for _, m := range status.Missing() {
		log.Warn().Str("model", m).Msgf("Model not found; run 'ollama pull %s'", m)
	}
}
