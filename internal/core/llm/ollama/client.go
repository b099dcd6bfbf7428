package ollama

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/core/llm"
)

const (
	defaultBaseURL     = "http://localhost:11434"
	generateEndpoint   = "/api/generate"
	defaultHTTPTimeout = 120 * time.Second
)

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.BaseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.HTTPClient.Timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client is a llm.Completer backed by a local Ollama server.
type Client struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	logger     *slog.Logger
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

func NewClient(model string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL:    defaultBaseURL,
		Model:      model,
		HTTPClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	if c == nil || c.Model == "" || c.BaseURL == "" {
		return "", common.LLMUnavailable("ollama model and base url are required", nil)
	}
	rid := uuid.New().String()
	start := time.Now()

	opts := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		opts["num_predict"] = req.MaxTokens
	}
	body := generateRequest{Model: c.Model, Prompt: req.Prompt, Options: opts}

	raw, status, err := llm.SendJSON(ctx, c.HTTPClient, c.BaseURL+generateEndpoint, body, nil, c.logger)
	if err != nil {
		c.logger.Error("llm.complete.http_error",
			"req_id", rid, "provider", "ollama", "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		if status == http.StatusNotFound {
			// unknown model
			return "", common.LLMUnavailable("ollama model "+c.Model+" not available", err)
		}
		return "", llm.ClassifyHTTPError("ollama", status, raw, err)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", common.LLMRequestFailure("decode ollama response", err)
	}
	if out.Error != "" {
		return "", common.LLMRequestFailure("ollama API error: "+out.Error, nil)
	}
	text := strings.TrimSpace(out.Response)
	c.logger.Info("llm.complete.ok",
		"req_id", rid,
		"provider", "ollama",
		"chars", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
