package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dochat/internal/config"
	"dochat/internal/session"
)

var (
	askShowSources bool
	askStream      bool
	askExport      []string
)

var askCmd = &cobra.Command{
	Use:   "ask <file.pdf> <question>",
	Short: "Answer one question about a PDF",
	Long: `Load a PDF, retrieve the passages most relevant to the question and
print the model's answer.

Examples:
  dochat ask report.pdf "What is the total budget?"
  dochat ask report.pdf "Who are the authors?" --sources --export md`,
	Args: cobra.MinimumNArgs(2),
	RunE: runAsk,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize <file.pdf>",
	Short: "Summarize a PDF in a few sentences",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummarize,
}

func init() {
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(summarizeCmd)
	for _, c := range []*cobra.Command{askCmd, summarizeCmd} {
		c.Flags().BoolVar(&askStream, "stream", false, "print tokens as they arrive, before <think> blocks are removed")
		c.Flags().StringSliceVar(&askExport, "export", nil, "also export the turn (txt, json, md, html)")
	}
	askCmd.Flags().BoolVar(&askShowSources, "sources", false, "print the retrieved passages")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args[1:], " ")
	return runOneShot(cmd, args[0], func(s *session.Session, stream func(string)) (session.Reply, error) {
		return s.Ask(cmd.Context(), question, nil, stream)
	})
}

func runSummarize(cmd *cobra.Command, args []string) error {
	return runOneShot(cmd, args[0], func(s *session.Session, stream func(string)) (session.Reply, error) {
		return s.Summarize(cmd.Context(), nil, stream)
	})
}

func runOneShot(cmd *cobra.Command, path string, call func(*session.Session, func(string)) (session.Reply, error)) error {
	cfg := GetConfig()
	for _, f := range askExport {
		if !config.IsExportFormat(f) {
			return fmt.Errorf("unsupported export format %q", f)
		}
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.load(cmd.Context(), path); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var stream func(string)
	if askStream {
		stream = func(chunk string) { fmt.Fprint(out, chunk) }
	}

	reply, err := call(a.session, stream)
	if err != nil {
		return err
	}
	if stream != nil {
		fmt.Fprintln(out)
	} else {
		fmt.Fprintln(out, reply.Answer)
	}

	if askShowSources && reply.Sources != "" {
		fmt.Fprintf(out, "\nSources:\n%s\n", reply.Sources)
	}

	if len(askExport) > 0 {
		paths, err := a.exporter.Export(reply.History, askExport...)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintf(os.Stderr, "Exported %s\n", p)
		}
	}
	return nil
}
