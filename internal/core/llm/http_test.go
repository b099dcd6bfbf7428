package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/joseph-ayodele/formscan/internal/common"
)

func TestSendJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Test") != "1" || r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	raw, status, err := SendJSON(context.Background(), srv.Client(), srv.URL, map[string]any{"a": 1}, map[string]string{"X-Test": "1"}, nil)
	if err != nil || status != http.StatusOK || string(raw) != `{"ok":true}` {
		t.Fatalf("raw=%s status=%d err=%v", raw, status, err)
	}
}

func TestClassifyHTTPError(t *testing.T) {
	cause := errors.New("x")
	cases := []struct {
		status    int
		sentinel  error
		retryable bool
	}{
		{0, common.ErrLLMRequest, true},
		{401, common.ErrLLMUnavailable, false},
		{403, common.ErrLLMUnavailable, false},
		{429, common.ErrLLMRequest, true},
		{502, common.ErrLLMRequest, true},
		{400, common.ErrLLMRequest, false},
	}
	for _, c := range cases {
		err := ClassifyHTTPError("openai", c.status, []byte("body"), cause)
		if !errors.Is(err, c.sentinel) {
			t.Errorf("status %d: %v is not %v", c.status, err, c.sentinel)
		}
		if IsRetryable(err) != c.retryable {
			t.Errorf("status %d: retryable = %v", c.status, IsRetryable(err))
		}
	}
	if ClassifyHTTPError("openai", 200, nil, nil) != nil {
		t.Error("nil error should stay nil")
	}
}
