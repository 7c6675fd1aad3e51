package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dochat/internal/helper"
	"dochat/internal/parser"
)

var (
	pagesJSON   bool
	pagesChunks bool
)

var pagesCmd = &cobra.Command{
	Use:   "pages <file.pdf>",
	Short: "Print the extracted text of each page",
	Long: `Extract a PDF without embedding it and print a preview of every page.
With --chunks the passages produced by the chunker are printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runPages,
}

func init() {
	rootCmd.AddCommand(pagesCmd)
	pagesCmd.Flags().BoolVar(&pagesJSON, "json", false, "output as JSON")
	pagesCmd.Flags().BoolVar(&pagesChunks, "chunks", false, "print passages instead of pages")
}

func runPages(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	path := args[0]
	out := cmd.OutOrStdout()

	if err := parser.ValidateUpload(path, cfg.Upload.AllowedTypes, cfg.MaxUploadBytes()); err != nil {
		return err
	}
	pages, err := parser.NewPDFExtractor().ExtractPages(path)
	if err != nil {
		return err
	}

	if pagesChunks {
		chunker, err := parser.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, cfg.RAG.Separators)
		if err != nil {
			return err
		}
		passages := chunker.SplitPages(pages)
		if pagesJSON {
			return helper.PrettyPrint(out, passages)
		}
		for _, p := range passages {
			fmt.Fprintf(out, "[%d] page %d, offset %d, %d chars\n%s\n\n", p.ID, p.Page+1, p.Start, len([]rune(p.Content)), p.Content)
		}
		return nil
	}

	if pagesJSON {
		return helper.PrettyPrint(out, pages)
	}
	for _, p := range pages {
		fmt.Fprintf(out, "Page %d/%d\n\n%s\n\n", p.Index+1, len(pages), helper.Truncate(p.Text, cfg.Preview.Chars))
	}
	return nil
}
