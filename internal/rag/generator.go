package rag

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"dochat/internal/config"
	"dochat/internal/models"
)

var thinkTagRe = regexp.MustCompile(models.ThinkTag)

// StreamFunc receives generated text as it arrives.
type StreamFunc func(chunk string)

// Generator turns retrieved passages into answers and summaries.
type Generator struct {
	llm         llms.Model
	temperature float64
	timeout     time.Duration
	sentences   string
}

func NewGenerator(llm llms.Model, llmConfig *config.LLMConfig, summarySentences string) *Generator {
	if summarySentences == "" {
		summarySentences = "3-4"
	}
	return &Generator{
		llm:         llm,
		temperature: llmConfig.Temperature,
		timeout:     time.Duration(llmConfig.TimeoutSecs) * time.Second,
		sentences:   summarySentences,
	}
}

// Answer asks the model to answer question from passages, given in retrieval order.
// It blocks until the model is done or the timeout expires.
func (g *Generator) Answer(ctx context.Context, question string, passages []models.Passage, stream StreamFunc) (string, error) {
	prompt := fmt.Sprintf(models.AnswerPromptTemplate, FormatContext(passages), question)
	return g.generate(ctx, "answer", prompt, stream)
}

// Summarize asks the model for a short summary of text.
func (g *Generator) Summarize(ctx context.Context, text string, stream StreamFunc) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", models.ErrEmptyDocument
	}
	prompt := fmt.Sprintf(models.SummaryPromptTemplate, g.sentences, text)
	return g.generate(ctx, "summarize", prompt, stream)
}

func (g *Generator) generate(ctx context.Context, op, prompt string, stream StreamFunc) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	opts := []llms.CallOption{llms.WithTemperature(g.temperature)}
	if stream != nil {
		opts = append(opts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			stream(string(chunk))
			return nil
		}))
	}

	start := time.Now()
	resp, err := g.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, opts...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return "", &models.GenerationError{Op: op, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &models.GenerationError{Op: op, Err: errors.New("empty response")}
	}

	out := CleanOutput(resp.Choices[0].Content)
	log.Debug().Str("op", op).Dur("elapsed", time.Since(start)).Int("chars", len(out)).Msg("Generated response")
	return out, nil
}

// FormatContext joins passage contents with a visible separator.
func FormatContext(passages []models.Passage) string {
	parts := make([]string, len(passages))
	for i, p := range passages {
		parts[i] = p.Content
	}
	return strings.Join(parts, models.ContextSeparator)
}

// CleanOutput removes <think> blocks and surrounding whitespace.
func CleanOutput(s string) string {
	return strings.TrimSpace(thinkTagRe.ReplaceAllString(s, ""))
}
