package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/formscan/internal/common"
)

// RetryableError marks a transient failure (network, 429, 5xx).
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// SendJSON sends a JSON request to a full URL with optional headers and returns the raw response body.
// It does not assume any provider. Callers decide the URL and headers.
func SendJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, logger *slog.Logger) ([]byte, int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}

	reqID := uuid.New().String()
	start := time.Now()
	if docID := common.DocumentIDFromContext(ctx); docID != "" {
		logger = logger.With("document_id", docID)
	}
	if parent := common.RequestIDFromContext(ctx); parent != "" {
		logger = logger.With("parent_req_id", parent)
	}

	bs, err := json.Marshal(body)
	if err != nil {
		logger.Error("llm.http.encode_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("encode json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bs))
	if err != nil {
		logger.Error("llm.http.build_request_error", "req_id", reqID, "error", err)
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	logger.Debug("llm.http.request",
		"req_id", reqID,
		"url", url,
		"content_length", len(bs),
	)

	resp, err := client.Do(req)
	if err != nil {
		logger.Error("llm.http.send_error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			logger.Warn("llm.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)

	logger.Debug("llm.http.response",
		"req_id", reqID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}

// ClassifyHTTPError turns a SendJSON failure into the pipeline error taxonomy.
// Auth failures mean the backend is unusable as configured; transport errors,
// throttling and server errors are retryable request failures.
func ClassifyHTTPError(provider string, status int, raw []byte, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case status == 0:
		if errors.Is(err, context.Canceled) {
			return common.LLMRequestFailure(provider+" request canceled", err)
		}
		return common.LLMRequestFailure(provider+" request failed", &RetryableError{Message: err.Error()})
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return common.LLMUnavailable(fmt.Sprintf("%s rejected credentials (status %d)", provider, status), errors.New(truncate(string(raw), 200)))
	case status == http.StatusTooManyRequests || status >= 500:
		return common.LLMRequestFailure(fmt.Sprintf("%s status %d", provider, status), &RetryableError{StatusCode: status, Message: string(raw)})
	default:
		return common.LLMRequestFailure(fmt.Sprintf("%s status %d: %s", provider, status, truncate(string(raw), 200)), err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
