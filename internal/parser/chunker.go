package parser

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"dochat/internal/models"
)

const defaultChunkSize = 800 // characters

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Chunker splits page text into overlapping passages of at most Size characters.
//
// Each passage ends on the coarsest separator that still lets it fit, falling
// back to finer separators and finally to a hard cut. The next passage starts
// Overlap characters before the previous one ended, so neighbours on the same
// page share exactly Overlap characters.
type Chunker struct {
	Size       int
	Overlap    int
	Separators []string
}

func NewChunker(size, overlap int, separators []string) (*Chunker, error) {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", overlap, size)
	}
	if len(separators) == 0 {
		separators = defaultSeparators
	}
	return &Chunker{Size: size, Overlap: overlap, Separators: separators}, nil
}

// SplitPages chunks every page and numbers the passages in document order.
func (c *Chunker) SplitPages(pages []models.Page) []models.Passage {
	var passages []models.Passage
	for _, page := range pages {
		for _, span := range c.split([]rune(page.Text)) {
			passages = append(passages, models.Passage{
				ID:      len(passages),
				Page:    page.Index,
				Start:   span.start,
				Content: span.text,
			})
		}
	}
	return passages
}

// Split chunks a single text.
func (c *Chunker) Split(text string) []string {
	spans := c.split([]rune(text))
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.text
	}
	return out
}

type span struct {
	start int
	text  string
}

func (c *Chunker) split(text []rune) []span {
	var spans []span
	n := len(text)
	start := 0
	for start < n {
		end := n
		if n-start > c.Size {
			end = c.cut(text, start)
		}
		spans = append(spans, span{start: start, text: string(text[start:end])})
		if end == n {
			break
		}
		start = end - c.Overlap
	}

	// blank windows inside the text stay so neighbours keep sharing Overlap
	// characters; only leading and trailing ones are dropped
	for len(spans) > 0 && isBlank([]rune(spans[0].text)) {
		spans = spans[1:]
	}
	for len(spans) > 0 && isBlank([]rune(spans[len(spans)-1].text)) {
		spans = spans[:len(spans)-1]
	}
	return spans
}

// cut picks where the window starting at start ends. The cut always lies past
// start+Overlap so the next window makes progress.
func (c *Chunker) cut(text []rune, start int) int {
	limit := start + c.Size
	floor := start + c.Overlap
	window := string(text[start:limit])

	for _, sep := range c.Separators {
		if sep == "" {
			break
		}
		// the last occurrence is the only candidate; earlier ones sit closer to start
		idx := strings.LastIndex(window, sep)
		if idx < 0 {
			continue
		}
		if end := start + utf8.RuneCountInString(window[:idx+len(sep)]); end > floor {
			return end
		}
	}
	return limit
}

func isBlank(r []rune) bool {
	for _, ch := range r {
		if !unicode.IsSpace(ch) {
			return false
		}
	}
	return true
}
