package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"

	"dochat/internal/config"
	"dochat/internal/helper"
	"dochat/internal/models"
)

const (
	title      = "DoChat - Chat Export"
	dateLayout = "2006-01-02 15:04:05"
	filePrefix = "dochat_export_"
)

// Exporter writes chat histories to files under a directory.
type Exporter struct {
	dir      string
	tsFormat string
	now      func() time.Time
}

func New(cfg config.ExportConfig) *Exporter {
	return &Exporter{dir: cfg.Dir, tsFormat: cfg.TimestampFormat, now: time.Now}
}

// Export writes history in each format and returns the written paths.
// An empty history writes nothing.
func (e *Exporter) Export(history []models.ChatTurn, formats ...string) ([]string, error) {
	if len(history) == 0 {
		return nil, models.ErrEmptyHistory
	}
	for _, f := range formats {
		if !config.IsExportFormat(f) {
			return nil, fmt.Errorf("unsupported export format %q", f)
		}
	}
	if err := helper.CreateFolder(e.dir); err != nil {
		return nil, err
	}

	now := e.now()
	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		data, err := Render(history, f, now)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(e.dir, filePrefix+now.Format(e.tsFormat)+"."+f)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		log.Info().Str("path", path).Int("entries", len(history)).Msg("Exported chat history")
		paths = append(paths, path)
	}
	return paths, nil
}

// Render serializes history in format.
func Render(history []models.ChatTurn, format string, now time.Time) ([]byte, error) {
	switch format {
	case "txt":
		return renderText(history, now), nil
	case "json":
		return renderJSON(history, now)
	case "md":
		return renderMarkdown(history, now), nil
	case "html":
		return renderHTML(history, now)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func renderText(history []models.ChatTurn, now time.Time) []byte {
	var b strings.Builder
	rule := strings.Repeat("=", 50)
	b.WriteString(title + "\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Export Date: %s\n", now.Format(dateLayout))
	fmt.Fprintf(&b, "Total Conversations: %d\n", len(history))
	b.WriteString(rule + "\n\n")
	for i, turn := range history {
		fmt.Fprintf(&b, "Entry %d:\n", i+1)
		fmt.Fprintf(&b, "Q: %s\n", turn.Question)
		fmt.Fprintf(&b, "A: %s\n", turn.Answer)
		b.WriteString(strings.Repeat("-", 30) + "\n\n")
	}
	return []byte(b.String())
}

type jsonExport struct {
	Title      string            `json:"title"`
	ExportedAt time.Time         `json:"exported_at"`
	Total      int               `json:"total"`
	Entries    []models.ChatTurn `json:"entries"`
}

func renderJSON(history []models.ChatTurn, now time.Time) ([]byte, error) {
	return json.MarshalIndent(jsonExport{
		Title:      title,
		ExportedAt: now,
		Total:      len(history),
		Entries:    history,
	}, "", "  ")
}

func renderMarkdown(history []models.ChatTurn, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- Export Date: %s\n- Total Conversations: %d\n\n", now.Format(dateLayout), len(history))
	for i, turn := range history {
		fmt.Fprintf(&b, "## Entry %d\n\n", i+1)
		fmt.Fprintf(&b, "**Q:** %s\n\n", turn.Question)
		fmt.Fprintf(&b, "**A:** %s\n\n", turn.Answer)
		b.WriteString("---\n\n")
	}
	return []byte(b.String())
}

func renderHTML(history []models.ChatTurn, now time.Time) ([]byte, error) {
	var body bytes.Buffer
	if err := goldmark.Convert(renderMarkdown(history, now), &body); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n", html.EscapeString(title))
	b.Write(body.Bytes())
	b.WriteString("</body>\n</html>\n")
	return b.Bytes(), nil
}
