package llm

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Answerer answers questions grounded in a stored qa_context.
type Answerer struct {
	llm    Completer
	logger *slog.Logger
}

func NewAnswerer(c Completer, logger *slog.Logger) *Answerer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Answerer{llm: c, logger: logger}
}

func (a *Answerer) Answer(ctx context.Context, question, qaContext string) (string, error) {
	start := time.Now()
	out, err := a.llm.Complete(ctx, CompletionRequest{
		Prompt:    answerPrompt(question, qaContext),
		MaxTokens: AnswerMaxTokens,
	})
	if err != nil {
		a.logger.Error("llm.answer.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}
	out = strings.TrimSpace(out)
	a.logger.Info("llm.answer.ok",
		"question_chars", len(question),
		"context_chars", len(qaContext),
		"answer_chars", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
