package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dochat/internal/config"
	"dochat/internal/llmservice"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the configured Ollama server and models are available",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "LLM:        %s %s (%s)\n", cfg.LLM.Provider, cfg.LLM.Model, cfg.LLM.BaseURL)
	fmt.Fprintf(out, "Embeddings: %s %s\n", cfg.EmbedLLM.Provider, cfg.EmbedLLM.Model)
	fmt.Fprintf(out, "Index:      %s (%s)\n", cfg.Index.Backend, cfg.Index.Metric)

	// models grouped by the ollama server that must serve them
	servers := map[string][]string{}
	if cfg.LLM.Provider == config.ProviderOllama {
		servers[cfg.LLM.BaseURL] = append(servers[cfg.LLM.BaseURL], cfg.LLM.Model)
	}
	if cfg.EmbedLLM.Provider == config.ProviderOllama {
		servers[cfg.EmbedLLM.BaseURL] = append(servers[cfg.EmbedLLM.BaseURL], cfg.EmbedLLM.Model)
	}
	if len(servers) == 0 {
		fmt.Fprintln(out, "\nNo Ollama provider configured, nothing to check.")
		return nil
	}

	healthy := true
	for url, models := range servers {
		status, err := llmservice.CheckOllama(cmd.Context(), url, models...)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\nOllama at %s\n", url)
		if !status.Reachable {
			healthy = false
			fmt.Fprintln(out, "  not reachable: start it with 'ollama serve'")
			continue
		}
		fmt.Fprintf(out, "  version %s, %d models installed\n", status.Version, len(status.Models))
		for _, m := range models {
			if status.HasModel[m] {
				fmt.Fprintf(out, "  ok       %s\n", m)
				continue
			}
			healthy = false
			fmt.Fprintf(out, "  missing  %s  (run: ollama pull %s)\n", m, m)
		}
	}

	if !healthy {
		return fmt.Errorf("ollama setup is incomplete")
	}
	fmt.Fprintln(out, "\nAll checks passed.")
	return nil
}
