package llm

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

// Normalized is the cleaned OCR text plus whether the input was clipped.
type Normalized struct {
	Text       string
	Truncated  bool
	InputChars int
}

// Normalizer asks the model to tidy raw OCR text without inventing content.
type Normalizer struct {
	llm      Completer
	maxChars int
	logger   *slog.Logger
}

func NewNormalizer(c Completer, maxChars int, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxInputChars
	}
	return &Normalizer{llm: c, maxChars: maxChars, logger: logger}
}

func (n *Normalizer) Normalize(ctx context.Context, raw string) (Normalized, error) {
	start := time.Now()
	clipped, truncated := Clip(raw, n.maxChars)
	chars := utf8.RuneCountInString(raw)
	if truncated {
		n.logger.Warn("llm.truncated", "stage", "normalize", "input_chars", chars, "max_chars", n.maxChars)
	}

	out, err := n.llm.Complete(ctx, CompletionRequest{
		Prompt:    normalizePrompt(clipped),
		MaxTokens: NormalizeMaxTokens,
	})
	if err != nil {
		n.logger.Error("llm.normalize.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return Normalized{}, err
	}
	out = strings.TrimSpace(out)
	n.logger.Info("llm.normalize.ok",
		"input_chars", chars,
		"output_chars", utf8.RuneCountInString(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Normalized{Text: out, Truncated: truncated, InputChars: chars}, nil
}
