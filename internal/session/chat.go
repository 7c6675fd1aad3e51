package session

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"dochat/internal/models"
	"dochat/internal/rag"
)

// Ask answers question from the live document and appends the turn to
// history. Missing document or empty question return an error without a
// turn; retrieval and generation failures are recorded as the answer.
func (s *Session) Ask(ctx context.Context, question string, history []models.ChatTurn, stream rag.StreamFunc) (Reply, error) {
	reply := Reply{History: history}

	doc := s.acquire()
	if doc == nil {
		return reply, models.ErrNoDocument
	}
	defer doc.inflight.Done()

	question = strings.TrimSpace(question)
	if question == "" {
		return reply, models.ErrInvalidQuery
	}

	log.Info().Str("question", question).Str("document", doc.id).Msg("Processing query")
	hits, err := doc.retriever.Retrieve(ctx, question)
	if err != nil {
		return s.fail(reply, question, err), err
	}
	reply.Passages = rag.Passages(hits)
	reply.Sources = rag.FormatContext(reply.Passages)

	answer, err := s.deps.Generator.Answer(ctx, question, reply.Passages, stream)
	if err != nil {
		return s.fail(reply, question, err), err
	}

	reply.Answer = answer
	reply.History = appendTurn(history, question, answer)
	return reply, nil
}

// Summarize produces a short summary of the live document and appends it to
// history under the summary marker.
func (s *Session) Summarize(ctx context.Context, history []models.ChatTurn, stream rag.StreamFunc) (Reply, error) {
	reply := Reply{History: history}

	doc := s.acquire()
	if doc == nil {
		return reply, models.ErrNoDocument
	}
	defer doc.inflight.Done()

	log.Info().Str("document", doc.id).Msg("Generating document summary")
	passages, text := s.representativeText(ctx, doc)
	reply.Passages = passages

	summary, err := s.deps.Generator.Summarize(ctx, text, stream)
	if err != nil {
		return s.fail(reply, models.SummaryFailureMarker, err), err
	}

	reply.Answer = summary
	reply.History = appendTurn(history, models.SummaryMarker, summary)
	return reply, nil
}

// representativeText picks the passages retrieved for the summary query,
// falling back to the first non-empty pages when retrieval yields nothing.
func (s *Session) representativeText(ctx context.Context, doc *document) ([]models.Passage, string) {
	hits, err := doc.retriever.Retrieve(ctx, s.cfg.RAG.SummaryQuery)
	if err != nil {
		log.Warn().Err(err).Msg("Summary retrieval failed, using leading pages")
	}
	if len(hits) > s.cfg.RAG.SummaryPassages {
		hits = hits[:s.cfg.RAG.SummaryPassages]
	}
	if len(hits) > 0 {
		passages := rag.Passages(hits)
		parts := make([]string, len(passages))
		for i, p := range passages {
			parts[i] = p.Content
		}
		return passages, strings.Join(parts, models.PassageJoiner)
	}

	var parts []string
	for _, p := range doc.pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		parts = append(parts, p.Text)
		if len(parts) == 3 {
			break
		}
	}
	return nil, strings.Join(parts, models.PassageJoiner)
}

func (s *Session) fail(reply Reply, question string, err error) Reply {
	log.Error().Err(err).Str("question", question).Msg("Error processing request")
	reply.Answer = models.AnswerErrorPrefix + err.Error()
	reply.History = appendTurn(reply.History, question, reply.Answer)
	return reply
}

// appendTurn never aliases the caller's backing array.
func appendTurn(history []models.ChatTurn, question, answer string) []models.ChatTurn {
	out := make([]models.ChatTurn, len(history), len(history)+1)
	copy(out, history)
	return append(out, models.ChatTurn{Question: question, Answer: answer})
}
