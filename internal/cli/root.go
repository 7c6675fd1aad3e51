package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"dochat/internal/config"
	"dochat/internal/helper"
)

const defaultConfigPath = "./configs/config.yaml"

var (
	cfgFile   string
	logLevel  string
	cfg       *config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "dochat",
	Short: "Chat with a PDF using a local language model",
	Long: `dochat extracts a PDF, indexes its passages with embeddings and answers
questions or writes summaries with a locally hosted language model.

Example usage:
  dochat chat report.pdf                      # Interactive session
  dochat ask report.pdf "What is the budget?"  # One question
  dochat summarize report.pdf                 # Short summary
  dochat doctor                               # Check the Ollama setup`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		// the TUI owns the terminal, so its logs go to a file
		if cmd == chatCmd && cfg.Log.File == "" {
			cfg.Log.File = "logs/dochat.log"
		}
		logCloser, err = helper.SetupLogger(cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		log.Debug().Str("config", cfgFile).Str("backend", cfg.Index.Backend).Msg("Loaded config")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigPath, "config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func GetConfig() *config.Config {
	return cfg
}
