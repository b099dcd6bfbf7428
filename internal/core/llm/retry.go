package llm

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/joseph-ayodele/formscan/internal/common"
)

// MaxAttempts is the default number of tries for a retryable completion.
const MaxAttempts = 3

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

type RetryOption func(*RetryingCompleter)

// WithAttempts sets the total number of tries.
func WithAttempts(n int) RetryOption {
	return func(r *RetryingCompleter) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithCallTimeout bounds every individual attempt.
func WithCallTimeout(d time.Duration) RetryOption {
	return func(r *RetryingCompleter) { r.callTimeout = d }
}

// WithBackoff replaces the delay schedule.
func WithBackoff(f func(attempt int) time.Duration) RetryOption {
	return func(r *RetryingCompleter) {
		if f != nil {
			r.backoff = f
		}
	}
}

// RetryingCompleter retries transient request failures. Missing credentials
// and non-retryable errors are returned immediately.
type RetryingCompleter struct {
	next        Completer
	attempts    int
	callTimeout time.Duration
	backoff     func(int) time.Duration
	logger      *slog.Logger
}

func NewRetryingCompleter(next Completer, logger *slog.Logger, opts ...RetryOption) *RetryingCompleter {
	if logger == nil {
		logger = slog.Default()
	}
	r := &RetryingCompleter{next: next, attempts: MaxAttempts, backoff: Backoff, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RetryingCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			wait := r.backoff(attempt - 1)
			r.logger.Warn("llm.retry", "attempt", attempt+1, "wait_ms", wait.Milliseconds(), "error", lastErr)
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return "", common.LLMRequestFailure("retry aborted", errors.Join(ctx.Err(), lastErr))
			case <-t.C:
			}
		}

		out, err := r.once(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !errors.Is(err, common.ErrLLMRequest) || !IsRetryable(err) || ctx.Err() != nil {
			return "", err
		}
	}
	return "", lastErr
}

func (r *RetryingCompleter) once(ctx context.Context, req CompletionRequest) (string, error) {
	ctx, cancel := common.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	out, err := r.next.Complete(ctx, req)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, common.ErrLLMRequest) {
		return "", common.LLMRequestFailure("llm call timed out", &RetryableError{Message: err.Error()})
	}
	return out, err
}
