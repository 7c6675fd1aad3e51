package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"dochat/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat [file.pdf]",
	Short: "Start an interactive chat session",
	Long: `Start the terminal interface. Optionally load a PDF right away.

Inside the session:
  /open <file.pdf>         load a document (replaces the current one)
  /summary                 summarize the document
  /export [txt json md html]  export the conversation
  /next, /prev, PgUp/PgDn  page through the document
  /quit                    leave

Logs are written to logs/dochat.log unless log.file is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	ctx := cmd.Context()

	warnIfOllamaDown(ctx, cfg)

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	model := tui.New(ctx, a.session, a.exporter, cfg.Export.Formats)
	if len(args) == 1 {
		model = model.WithDocument(args[0])
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
