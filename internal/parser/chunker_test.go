package parser

import (
	"strings"
	"testing"
	"unicode/utf8"

	"dochat/internal/models"
)

func TestNewChunkerRejectsOverlap(t *testing.T) {
	if _, err := NewChunker(100, 100, nil); err == nil {
		t.Fatal("expected error when overlap equals size")
	}
	if _, err := NewChunker(100, 150, nil); err == nil {
		t.Fatal("expected error when overlap exceeds size")
	}
	c, err := NewChunker(100, -5, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Overlap != 0 {
		t.Errorf("negative overlap should clamp to 0, got %d", c.Overlap)
	}
}

func TestChunkerShortTextIsOnePassage(t *testing.T) {
	c, _ := NewChunker(800, 200, nil)
	got := c.Split("Alpha section about apples.")
	if len(got) != 1 || got[0] != "Alpha section about apples." {
		t.Fatalf("expected the text unchanged, got %q", got)
	}
}

func TestChunkerBoundsAndOverlap(t *testing.T) {
	paragraph := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 6)
	text := strings.Join([]string{paragraph, paragraph, "line one\nline two\nline three", paragraph}, "\n\n")
	unbroken := strings.Repeat("abcdefghij", 40)

	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
	}{
		{name: "paragraphs", text: text, size: 120, overlap: 30},
		{name: "small windows", text: text, size: 40, overlap: 10},
		{name: "no overlap", text: text, size: 64, overlap: 0},
		{name: "hard split", text: unbroken, size: 50, overlap: 20},
		{name: "multibyte", text: strings.Repeat("héllo wörld ünïcode ", 30), size: 33, overlap: 7},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewChunker(tc.size, tc.overlap, nil)
			if err != nil {
				t.Fatal(err)
			}
			passages := c.Split(tc.text)
			if len(passages) < 2 {
				t.Fatalf("expected several passages, got %d", len(passages))
			}
			for i, p := range passages {
				if n := utf8.RuneCountInString(p); n > tc.size {
					t.Errorf("passage %d has %d characters, limit %d", i, n, tc.size)
				}
			}
			for i := 1; i < len(passages); i++ {
				prev := []rune(passages[i-1])
				next := []rune(passages[i])
				tail := string(prev[len(prev)-tc.overlap:])
				head := string(next[:tc.overlap])
				if tail != head {
					t.Errorf("passages %d/%d overlap mismatch: %q vs %q", i-1, i, tail, head)
				}
			}
		})
	}
}

func TestChunkerKeepsOverlapAcrossBlankRuns(t *testing.T) {
	text := "   \n\n" + strings.Repeat("a", 20) + strings.Repeat(" ", 60) + strings.Repeat("b", 20) + "\n\n   "
	c, _ := NewChunker(20, 5, []string{""})

	passages := c.Split(text)
	if len(passages) < 3 {
		t.Fatalf("expected several passages, got %q", passages)
	}
	if strings.TrimSpace(passages[0]) == "" || strings.TrimSpace(passages[len(passages)-1]) == "" {
		t.Errorf("leading or trailing blank passage kept: %q", passages)
	}
	for i := 1; i < len(passages); i++ {
		prev := []rune(passages[i-1])
		next := []rune(passages[i])
		if string(prev[len(prev)-5:]) != string(next[:5]) {
			t.Errorf("passages %d/%d overlap mismatch: %q vs %q", i-1, i, passages[i-1], passages[i])
		}
	}
}

func TestChunkerCoversWholeText(t *testing.T) {
	text := strings.Repeat("word ", 200)
	c, _ := NewChunker(50, 10, nil)

	var rebuilt strings.Builder
	for i, p := range c.Split(text) {
		r := []rune(p)
		if i > 0 {
			r = r[10:]
		}
		rebuilt.WriteString(string(r))
	}
	if rebuilt.String() != text {
		t.Errorf("passages minus overlap do not reconstruct the text")
	}
}

func TestChunkerPrefersCoarseSeparators(t *testing.T) {
	first := strings.Repeat("a", 30)
	second := strings.Repeat("b", 30)
	c, _ := NewChunker(50, 5, nil)

	got := c.Split(first + "\n\n" + second)
	if len(got) != 2 {
		t.Fatalf("expected 2 passages, got %d: %q", len(got), got)
	}
	if got[0] != first+"\n\n" {
		t.Errorf("first passage should end at the paragraph break, got %q", got[0])
	}
}

func TestSplitPagesKeepsProvenance(t *testing.T) {
	pages := []models.Page{
		{Index: 0, Text: "Alpha section about apples."},
		{Index: 1, Text: ""},
		{Index: 2, Text: "   \n  "},
		{Index: 3, Text: "Gamma section about grapes."},
	}
	c, _ := NewChunker(800, 200, nil)

	passages := c.SplitPages(pages)
	if len(passages) != 2 {
		t.Fatalf("expected 2 passages, got %d", len(passages))
	}
	if passages[0].Page != 0 || passages[1].Page != 3 {
		t.Errorf("unexpected pages %d, %d", passages[0].Page, passages[1].Page)
	}
	if passages[0].ID != 0 || passages[1].ID != 1 {
		t.Errorf("ids must be sequential, got %d, %d", passages[0].ID, passages[1].ID)
	}
}
