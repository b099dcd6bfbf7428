package openai

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/core/llm"
)

// Complete implements llm.Completer with a single user message on chat/completions.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", common.LLMUnavailable("OPENAI_API_KEY is not set", nil)
	}
	rid := uuid.New().String()
	start := time.Now()

	temp := req.Temperature
	if temp == 0 {
		temp = c.cfg.Temperature
	}
	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": temp,
		"messages": []map[string]any{
			{"role": "user", "content": req.Prompt},
		},
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}

	c.logger.Debug("llm.complete.start",
		"req_id", rid,
		"provider", "openai",
		"model", c.cfg.Model,
		"prompt_chars", len(req.Prompt),
		"max_tokens", req.MaxTokens,
	)

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, status, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.complete.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", llm.ClassifyHTTPError("openai", status, raw, err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.complete.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return "", common.LLMRequestFailure("decode openai response", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.complete.no_choices", "req_id", rid, "raw", string(raw))
		return "", common.LLMRequestFailure("no choices in openai response", nil)
	}

	out := strings.TrimSpace(cc.Choices[0].Message.Content)
	c.logger.Info("llm.complete.ok",
		"req_id", rid,
		"provider", "openai",
		"chars", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
