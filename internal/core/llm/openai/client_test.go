package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/core/llm"
)

func TestComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" || r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  hello \n"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL}, nil)
	out, err := c.Complete(context.Background(), llm.CompletionRequest{Prompt: "hi", MaxTokens: 128})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello" {
		t.Errorf("out = %q", out)
	}
	if got["model"] != "gpt-4o-mini" || got["max_tokens"] != float64(128) || got["temperature"] != float64(0) {
		t.Errorf("request body = %v", got)
	}
}

func TestComplete_MissingKey(t *testing.T) {
	_, err := NewClient(Config{}, nil).Complete(context.Background(), llm.CompletionRequest{Prompt: "hi"})
	if !errors.Is(err, common.ErrLLMUnavailable) {
		t.Fatalf("expected ErrLLMUnavailable, got %v", err)
	}
}

func TestComplete_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil).Complete(context.Background(), llm.CompletionRequest{Prompt: "hi"})
	if !errors.Is(err, common.ErrLLMRequest) || !llm.IsRetryable(err) {
		t.Fatalf("expected retryable ErrLLMRequest, got %v", err)
	}
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL}, nil).Complete(context.Background(), llm.CompletionRequest{Prompt: "hi"})
	if !errors.Is(err, common.ErrLLMRequest) {
		t.Fatalf("expected ErrLLMRequest, got %v", err)
	}
}
