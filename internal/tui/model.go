package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dochat/internal/models"
	"dochat/internal/rag"
	"dochat/internal/session"
)

// Service is the TUI-facing subset of the session.
type Service interface {
	Upload(ctx context.Context, path string) (string, session.PageView, error)
	Ask(ctx context.Context, question string, history []models.ChatTurn, stream rag.StreamFunc) (session.Reply, error)
	Summarize(ctx context.Context, history []models.ChatTurn, stream rag.StreamFunc) (session.Reply, error)
	PageForward() (session.PageView, bool)
	PageBack() (session.PageView, bool)
	CurrentPage() (session.PageView, bool)
	Status() string
}

type Exporter interface {
	Export(history []models.ChatTurn, formats ...string) ([]string, error)
}

type uploadMsg struct {
	status string
	page   session.PageView
	err    error
}

type replyMsg struct {
	reply session.Reply
	err   error
}

type exportMsg struct {
	paths []string
	err   error
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx      context.Context
	service  Service
	exporter Exporter
	formats  []string

	input    textinput.Model
	viewport viewport.Model
	history  []models.ChatTurn
	page     string
	sources  string
	status   string
	busy     bool
	ready    bool
	width    int
	pending  string
}

// New creates the model. formats are the export formats used by /export
// without arguments.
func New(ctx context.Context, service Service, exporter Exporter, formats []string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or /help"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		ctx:      ctx,
		service:  service,
		exporter: exporter,
		formats:  formats,
		input:    ti,
		viewport: viewport.New(0, 0),
		page:     "No pages loaded",
		status:   service.Status(),
	}
}

// WithDocument makes the model load path as soon as the program starts.
func (m Model) WithDocument(path string) Model {
	m.pending = path
	m.busy = true
	m.status = "Processing " + path + "..."
	return m
}

// Init initializes the model (text input cursor blink) and starts a pending upload.
func (m Model) Init() tea.Cmd {
	if m.pending != "" {
		return tea.Batch(textinput.Blink, m.uploadCmd(m.pending))
	}
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		_, ch := chatBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + pageLines + 2 + qh + 1 + 1 // header, page box, input, status
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-ch)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyPgDown:
			return m.navigate(1), nil
		case tea.KeyPgUp:
			return m.navigate(-1), nil
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "" {
				return m, nil
			}
			return m.submit(line)
		case tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case uploadMsg:
		m.busy = false
		m.pending = ""
		m.status = msg.status
		if msg.err == nil {
			m.page = msg.page.String()
			m.sources = ""
		}
		m.refresh()
		return m, nil

	case replyMsg:
		m.busy = false
		m.history = msg.reply.History
		m.sources = msg.reply.Sources
		switch {
		case msg.err == nil:
			m.status = "Done"
		case isPrecondition(msg.err):
			m.status = preconditionStatus(msg.err)
		default:
			m.status = "Error: " + msg.err.Error()
		}
		m.refresh()
		m.viewport.GotoBottom()
		return m, nil

	case exportMsg:
		if msg.err != nil {
			m.status = "Export failed: " + msg.err.Error()
		} else {
			m.status = "Exported to " + strings.Join(msg.paths, ", ")
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit runs a slash command or asks a question.
func (m Model) submit(line string) (tea.Model, tea.Cmd) {
	if !strings.HasPrefix(line, "/") {
		return m.startAsk(line)
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "/open":
		if len(args) == 0 {
			m.status = "Usage: /open <file.pdf>"
			return m, nil
		}
		return m.startUpload(strings.Join(args, " "))
	case "/summary", "/summarize":
		return m.startSummary()
	case "/export":
		formats := args
		if len(formats) == 0 {
			formats = m.formats
		}
		return m, m.exportCmd(formats)
	case "/next":
		return m.navigate(1), nil
	case "/prev":
		return m.navigate(-1), nil
	case "/page":
		return m.navigate(0), nil
	case "/help":
		m.status = helpText
		return m, nil
	case "/quit", "/exit":
		return m, tea.Quit
	default:
		m.status = fmt.Sprintf("Unknown command %s, try /help", cmd)
		return m, nil
	}
}

func (m Model) startUpload(path string) (tea.Model, tea.Cmd) {
	if m.busy {
		m.status = "Busy, please wait"
		return m, nil
	}
	m.busy = true
	m.status = "Processing " + path + "..."
	return m, m.uploadCmd(path)
}

func (m Model) uploadCmd(path string) tea.Cmd {
	svc, ctx := m.service, m.ctx
	return func() tea.Msg {
		status, page, err := svc.Upload(ctx, path)
		return uploadMsg{status: status, page: page, err: err}
	}
}

func (m Model) startAsk(question string) (tea.Model, tea.Cmd) {
	if m.busy {
		m.status = "Busy, please wait"
		return m, nil
	}
	m.busy = true
	m.status = "Thinking..."
	svc, ctx, history := m.service, m.ctx, m.history
	return m, func() tea.Msg {
		reply, err := svc.Ask(ctx, question, history, nil)
		return replyMsg{reply: reply, err: err}
	}
}

func (m Model) startSummary() (tea.Model, tea.Cmd) {
	if m.busy {
		m.status = "Busy, please wait"
		return m, nil
	}
	m.busy = true
	m.status = "Summarizing..."
	svc, ctx, history := m.service, m.ctx, m.history
	return m, func() tea.Msg {
		reply, err := svc.Summarize(ctx, history, nil)
		return replyMsg{reply: reply, err: err}
	}
}

func (m Model) exportCmd(formats []string) tea.Cmd {
	exp, history := m.exporter, m.history
	return func() tea.Msg {
		paths, err := exp.Export(history, formats...)
		return exportMsg{paths: paths, err: err}
	}
}

func (m Model) navigate(delta int) Model {
	var (
		view session.PageView
		ok   bool
	)
	switch {
	case delta > 0:
		view, ok = m.service.PageForward()
	case delta < 0:
		view, ok = m.service.PageBack()
	default:
		view, ok = m.service.CurrentPage()
	}
	if !ok {
		m.page = "No pages loaded"
		return m
	}
	m.page = view.String()
	return m
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderHistory(m.history, m.sources, m.viewport.Width))
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("DoChat")
	page := pageBoxStyle.Width(max(20, m.width-2)).Render(clampLines(m.page, pageLines))
	chat := chatBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	if m.busy {
		status = busyStyle.Render(m.status)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, page, chat, input, status)
}

func renderHistory(history []models.ChatTurn, sources string, width int) string {
	if len(history) == 0 {
		return "No conversation yet. Open a PDF with /open <file.pdf>, then ask a question."
	}
	wrap := lipgloss.NewStyle().Width(max(20, width))
	var b strings.Builder
	for _, turn := range history {
		b.WriteString(questionStyle.Render(wrap.Render(turn.Question)) + "\n")
		b.WriteString(wrap.Render(turn.Answer) + "\n\n")
	}
	if sources != "" {
		b.WriteString(sourceStyle.Render(wrap.Render("Sources:\n" + sources)))
	}
	return b.String()
}

func isPrecondition(err error) bool {
	return errors.Is(err, models.ErrNoDocument) || errors.Is(err, models.ErrInvalidQuery)
}

func preconditionStatus(err error) string {
	if errors.Is(err, models.ErrNoDocument) {
		return models.StatusNoDocument
	}
	return models.StatusNoQuestion
}

func clampLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

const (
	pageLines = 6
	helpText  = "/open <file.pdf>  /summary  /export [txt json md html]  /next  /prev  PgUp/PgDn  /quit"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	pageBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).Foreground(lipgloss.Color("8"))
	chatBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	sourceStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	busyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)
