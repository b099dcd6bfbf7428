package llm

import (
	"context"
	"unicode/utf8"
)

// CompletionRequest is a single-prompt completion.
type CompletionRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Completer is the language-model backend. Implementations return the
// trimmed model text, ErrLLMUnavailable when they are not configured and
// ErrLLMRequest when the call itself fails.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req CompletionRequest) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}

// DefaultMaxInputChars bounds the text sent to the model on each call.
const DefaultMaxInputChars = 1500

// Clip returns the first max characters of s and whether anything was cut.
// max <= 0 disables clipping.
func Clip(s string, max int) (string, bool) {
	if max <= 0 || len(s) <= max {
		return s, false
	}
	if utf8.RuneCountInString(s) <= max {
		return s, false
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i], true
		}
		n++
	}
	return s, false
}
