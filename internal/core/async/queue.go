package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/formscan/internal/entity"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job asks for one stored document to be processed.
type Job struct {
	DocumentID  uuid.UUID `json:"document_id"`
	Force       bool      `json:"force,omitempty"` // reprocess even when already LLM_OK
	SubmittedAt time.Time `json:"submitted_at"`
	TraceID     string    `json:"trace_id,omitempty"`
}

// Queue accepts document jobs for background processing.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// DocumentProcessor is the work a queue runs per job.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, id uuid.UUID) (*entity.Document, error)
}
