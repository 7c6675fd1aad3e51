package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"dochat/internal/models"
	"dochat/internal/rag"
	"dochat/internal/session"
)

type fakeService struct {
	cursor    int
	pages     int
	uploads   []string
	questions []string
}

func (f *fakeService) Upload(ctx context.Context, path string) (string, session.PageView, error) {
	f.uploads = append(f.uploads, path)
	f.pages, f.cursor = 3, 0
	return models.StatusLoaded, session.PageView{Index: 0, Total: 3, Text: "first page"}, nil
}

func (f *fakeService) Ask(ctx context.Context, question string, history []models.ChatTurn, stream rag.StreamFunc) (session.Reply, error) {
	f.questions = append(f.questions, question)
	if f.pages == 0 {
		return session.Reply{History: history}, models.ErrNoDocument
	}
	return session.Reply{
		Answer:  "answer to " + question,
		Sources: "source passage",
		History: append(history, models.ChatTurn{Question: question, Answer: "answer to " + question}),
	}, nil
}

func (f *fakeService) Summarize(ctx context.Context, history []models.ChatTurn, stream rag.StreamFunc) (session.Reply, error) {
	return session.Reply{
		Answer:  "summary",
		History: append(history, models.ChatTurn{Question: models.SummaryMarker, Answer: "summary"}),
	}, nil
}

func (f *fakeService) move(delta int) (session.PageView, bool) {
	if f.pages == 0 {
		return session.PageView{}, false
	}
	f.cursor = max(0, min(f.pages-1, f.cursor+delta))
	return session.PageView{Index: f.cursor, Total: f.pages, Text: "text"}, true
}

func (f *fakeService) PageForward() (session.PageView, bool) { return f.move(1) }
func (f *fakeService) PageBack() (session.PageView, bool)    { return f.move(-1) }
func (f *fakeService) CurrentPage() (session.PageView, bool) { return f.move(0) }
func (f *fakeService) Status() string                        { return models.StatusNoDocument }

type fakeExporter struct {
	formats []string
	history []models.ChatTurn
}

func (f *fakeExporter) Export(history []models.ChatTurn, formats ...string) ([]string, error) {
	if len(history) == 0 {
		return nil, models.ErrEmptyHistory
	}
	f.history, f.formats = history, formats
	return []string{"exports/chat.txt"}, nil
}

// run submits line and feeds the resulting command's message back into the model.
func run(t *testing.T, m Model, line string) Model {
	t.Helper()
	next, cmd := m.submit(line)
	m = next.(Model)
	if cmd != nil {
		msg := cmd()
		if _, quit := msg.(tea.QuitMsg); quit {
			return m
		}
		next, _ = m.Update(msg)
		m = next.(Model)
	}
	return m
}

func newModel() (Model, *fakeService, *fakeExporter) {
	svc, exp := &fakeService{}, &fakeExporter{}
	m := New(context.Background(), svc, exp, []string{"txt"})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	return next.(Model), svc, exp
}

func TestAskWithoutDocument(t *testing.T) {
	m, _, _ := newModel()
	m = run(t, m, "what is this?")
	if m.status != models.StatusNoDocument {
		t.Errorf("status = %q", m.status)
	}
	if len(m.history) != 0 {
		t.Errorf("history = %+v", m.history)
	}
	if m.busy {
		t.Error("model still busy")
	}
}

func TestOpenAskSummarizeExport(t *testing.T) {
	m, svc, exp := newModel()

	m = run(t, m, "/open docs/My Paper.pdf")
	if len(svc.uploads) != 1 || svc.uploads[0] != "docs/My Paper.pdf" {
		t.Fatalf("uploads = %v", svc.uploads)
	}
	if m.status != models.StatusLoaded || !strings.HasPrefix(m.page, "Page 1/3") {
		t.Errorf("after upload: status %q page %q", m.status, m.page)
	}

	m = run(t, m, "What is Beta?")
	m = run(t, m, "/summary")
	if len(m.history) != 2 || m.history[1].Question != models.SummaryMarker {
		t.Fatalf("history = %+v", m.history)
	}
	if !strings.Contains(m.View(), "answer to What is Beta?") {
		t.Error("answer not rendered")
	}

	m = run(t, m, "/export")
	if len(exp.formats) != 1 || exp.formats[0] != "txt" || len(exp.history) != 2 {
		t.Errorf("export called with %v %d", exp.formats, len(exp.history))
	}
	if !strings.HasPrefix(m.status, "Exported to ") {
		t.Errorf("status = %q", m.status)
	}

	m = run(t, m, "/export md html")
	if len(exp.formats) != 2 || exp.formats[1] != "html" {
		t.Errorf("explicit formats = %v", exp.formats)
	}
}

func TestPageKeys(t *testing.T) {
	m, _, _ := newModel()
	m = run(t, m, "/next")
	if m.page != "No pages loaded" {
		t.Errorf("page = %q", m.page)
	}

	m = run(t, m, "/open a.pdf")
	for i := 0; i < 4; i++ {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyPgDown})
		m = next.(Model)
	}
	if !strings.HasPrefix(m.page, "Page 3/3") {
		t.Errorf("page after PgDn = %q", m.page)
	}
	m = run(t, m, "/prev")
	if !strings.HasPrefix(m.page, "Page 2/3") {
		t.Errorf("page after /prev = %q", m.page)
	}
}

func TestUnknownCommandAndBusy(t *testing.T) {
	m, svc, _ := newModel()
	m = run(t, m, "/frobnicate")
	if !strings.Contains(m.status, "Unknown command /frobnicate") {
		t.Errorf("status = %q", m.status)
	}

	m.busy = true
	next, cmd := m.submit("question")
	if cmd != nil {
		t.Error("no command should start while busy")
	}
	if next.(Model).status != "Busy, please wait" || len(svc.questions) != 0 {
		t.Errorf("busy model accepted a question")
	}
}
