package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/core/async"
	"github.com/joseph-ayodele/formscan/internal/entity"
)

type stubProcessor struct {
	got uuid.UUID
	err error
}

func (s *stubProcessor) ProcessDocument(_ context.Context, id uuid.UUID) (*entity.Document, error) {
	s.got = id
	return &entity.Document{ID: id}, s.err
}

func TestNewProcessTask(t *testing.T) {
	id := uuid.New()
	task, err := NewProcessTask(async.Job{DocumentID: id})
	if err != nil {
		t.Fatalf("task: %v", err)
	}
	if task.Type() != TaskProcessDocument {
		t.Errorf("type = %q", task.Type())
	}
	var job async.Job
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if job.DocumentID != id || job.SubmittedAt.IsZero() {
		t.Errorf("job = %+v", job)
	}
}

func TestHandleProcessDocument(t *testing.T) {
	id := uuid.New()
	task, _ := NewProcessTask(async.Job{DocumentID: id})

	cases := []struct {
		name      string
		err       error
		wantErr   bool
		wantRetry bool
	}{
		{name: "ok"},
		{name: "transient", err: common.LLMRequestFailure("503", nil), wantErr: true, wantRetry: true},
		{name: "decode", err: common.DecodeFailure("bad page", nil), wantErr: true},
		{name: "no key", err: common.LLMUnavailable("no key", nil), wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			proc := &stubProcessor{err: tc.err}
			c := &Consumer{proc: proc, logger: discardLogger()}

			err := c.handleProcessDocument(context.Background(), task)
			if proc.got != id {
				t.Errorf("processed %s, want %s", proc.got, id)
			}
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v", err)
			}
			if err != nil && errors.Is(err, asynq.SkipRetry) == tc.wantRetry {
				t.Errorf("skip retry = %v for %v", errors.Is(err, asynq.SkipRetry), err)
			}
		})
	}
}

func TestHandleProcessDocument_BadPayload(t *testing.T) {
	c := &Consumer{proc: &stubProcessor{}, logger: discardLogger()}
	err := c.handleProcessDocument(context.Background(), asynq.NewTask(TaskProcessDocument, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("bad payload must not be retried: %v", err)
	}
}

func TestPing_BadURL(t *testing.T) {
	if err := Ping(context.Background(), "not a url", 0); err == nil {
		t.Fatal("expected parse error")
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
