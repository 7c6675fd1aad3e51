// Package session owns the single live document: its pages, page cursor,
// index and retriever. Upload replaces the document atomically; a failed
// upload leaves the previous one in place.
//
// Upload, Ask and Summarize block on the embedding model and the language
// model. Front ends must call them off their event loop. Navigation and
// Status never wait for them.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"dochat/internal/config"
	"dochat/internal/embedding"
	"dochat/internal/helper"
	"dochat/internal/index"
	"dochat/internal/models"
	"dochat/internal/parser"
	"dochat/internal/rag"
)

type State int

const (
	StateEmpty State = iota
	StateBuilding
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Deps are the collaborators a Session is built from.
type Deps struct {
	Extractor    parser.Extractor
	Embedder     embeddings.Embedder
	Generator    *rag.Generator
	IndexFactory index.Factory
}

// PageView is one page as shown to the user. Index is 0-based.
type PageView struct {
	Index int
	Total int
	Text  string
}

// Reply is the outcome of Ask or Summarize. History always holds the
// caller's turns plus the one appended by the call, if any.
type Reply struct {
	Answer   string
	Sources  string
	Passages []models.Passage
	History  []models.ChatTurn
}

type Session struct {
	cfg     *config.Config
	deps    Deps
	chunker *parser.Chunker

	// uploadMu serializes uploads; mu guards the fields below and is held
	// only for short reads and the final swap.
	uploadMu sync.Mutex
	mu       sync.RWMutex
	building bool
	doc      *document
	progress func(done, total int)
}

type document struct {
	id        string
	path      string
	pages     []models.Page
	passages  int
	index     index.Index
	retriever *rag.Retriever
	cursor    int

	// inflight counts Ask/Summarize calls still using index
	inflight sync.WaitGroup
}

func New(cfg *config.Config, deps Deps) (*Session, error) {
	if deps.Extractor == nil || deps.Embedder == nil || deps.Generator == nil || deps.IndexFactory == nil {
		return nil, fmt.Errorf("session: missing dependency")
	}
	chunker, err := parser.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, cfg.RAG.Separators)
	if err != nil {
		return nil, err
	}
	return &Session{cfg: cfg, deps: deps, chunker: chunker}, nil
}

// OnProgress registers a callback for embedding progress during Upload.
func (s *Session) OnProgress(fn func(done, total int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = fn
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.building:
		return StateBuilding
	case s.doc != nil:
		return StateReady
	default:
		return StateEmpty
	}
}

// Status is a one-line description of the session.
func (s *Session) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.building:
		return "Processing PDF..."
	case s.doc == nil:
		return models.StatusNoDocument
	default:
		return fmt.Sprintf("%s: %d pages, %d passages", s.doc.path, len(s.doc.pages), s.doc.passages)
	}
}

// Upload validates and extracts path, builds a new index and makes it the
// live document. It returns a status line and the first page.
func (s *Session) Upload(ctx context.Context, path string) (string, PageView, error) {
	if strings.TrimSpace(path) == "" {
		return models.StatusNoFile, PageView{}, models.ErrNoFile
	}

	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()

	s.mu.Lock()
	s.building = true
	progress := s.progress
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.building = false
		s.mu.Unlock()
	}()

	doc, err := s.build(ctx, path, progress)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Error building RAG pipeline")
		return fmt.Sprintf(models.StatusUploadError, err), PageView{}, err
	}

	s.mu.Lock()
	old := s.doc
	s.doc = doc
	view := doc.view(s.cfg.Preview.Chars)
	s.mu.Unlock()

	if old != nil {
		go retire(old)
	}
	log.Info().Str("path", path).Str("document", doc.id).Int("pages", len(doc.pages)).Int("passages", doc.passages).Msg("PDF loaded")
	return models.StatusLoaded, view, nil
}

func (s *Session) build(ctx context.Context, path string, progress func(done, total int)) (*document, error) {
	if err := parser.ValidateUpload(path, s.cfg.Upload.AllowedTypes, s.cfg.MaxUploadBytes()); err != nil {
		return nil, err
	}

	pages, err := s.deps.Extractor.ExtractPages(path)
	if err != nil {
		return nil, err
	}
	passages := s.chunker.SplitPages(pages)
	log.Debug().Int("pages", len(pages)).Int("passages", len(passages)).Msg("Chunked document")

	vecs, err := embedding.GenerateEmbeddings(ctx, s.deps.Embedder, passages, s.cfg.EmbedLLM.BatchSize, progress)
	if err != nil {
		return nil, err
	}

	idx, err := s.deps.IndexFactory()
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	if err := idx.Build(ctx, passages, vecs); err != nil {
		idx.Close()
		return nil, err
	}

	retriever, err := rag.NewRetriever(s.deps.Embedder, idx, s.cfg.RAG.K, s.cfg.RAG.FetchK, s.cfg.RAG.MMRLambda)
	if err != nil {
		idx.Close()
		return nil, err
	}

	id, err := helper.GenerateUUID()
	if err != nil {
		idx.Close()
		return nil, err
	}
	return &document{
		id:        id,
		path:      path,
		pages:     pages,
		passages:  len(passages),
		index:     idx,
		retriever: retriever,
	}, nil
}

// retire closes a replaced document's index once no call uses it.
func retire(old *document) {
	old.inflight.Wait()
	if err := old.index.Close(); err != nil {
		log.Warn().Err(err).Str("document", old.id).Msg("Error closing replaced index")
	}
}

// acquire returns the live document and marks it in use. Callers must call
// doc.inflight.Done.
func (s *Session) acquire() *document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil
	}
	s.doc.inflight.Add(1)
	return s.doc
}

func (s *Session) PageForward() (PageView, bool) {
	return s.move(1)
}

func (s *Session) PageBack() (PageView, bool) {
	return s.move(-1)
}

func (s *Session) CurrentPage() (PageView, bool) {
	return s.move(0)
}

// move shifts the cursor by delta, clamped to the page range. It reports
// false when no document with pages is loaded.
func (s *Session) move(delta int) (PageView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil || len(s.doc.pages) == 0 {
		return PageView{}, false
	}
	s.doc.cursor = max(0, min(len(s.doc.pages)-1, s.doc.cursor+delta))
	return s.doc.view(s.cfg.Preview.Chars), true
}

func (d *document) view(chars int) PageView {
	if len(d.pages) == 0 {
		return PageView{}
	}
	return PageView{
		Index: d.cursor,
		Total: len(d.pages),
		Text:  helper.Truncate(d.pages[d.cursor].Text, chars),
	}
}

// Pages returns a copy of the live document's pages.
func (s *Session) Pages() []models.Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil
	}
	out := make([]models.Page, len(s.doc.pages))
	copy(out, s.doc.pages)
	return out
}

// Header renders a PageView the way the front ends show it.
func (v PageView) Header() string {
	return fmt.Sprintf("Page %d/%d", v.Index+1, v.Total)
}

func (v PageView) String() string {
	if v.Total == 0 {
		return "No pages loaded"
	}
	return v.Header() + "\n\n" + v.Text
}
