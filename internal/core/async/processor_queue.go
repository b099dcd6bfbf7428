package async

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ProcessorQueue is an in-process worker pool over a buffered channel.
type ProcessorQueue struct {
	proc    DocumentProcessor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch      chan Job
	done    chan struct{} // closed by Shutdown; unblocks waiting senders
	wg      sync.WaitGroup
	senders sync.WaitGroup
	once    sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(proc DocumentProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					start := time.Now()
					_, err := q.proc.ProcessDocument(ctx, job.DocumentID)
					cancel()

					if err != nil {
						q.logger.Error("queue.job.failed", "worker_id", workerID, "document_id", job.DocumentID, "error", err)
					} else {
						q.logger.Info("queue.job.ok", "worker_id", workerID, "document_id", job.DocumentID,
							"wait_ms", start.Sub(job.SubmittedAt).Milliseconds(),
							"elapsed_ms", time.Since(start).Milliseconds())
					}
				}

				q.logger.Debug("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue blocks while the buffer is full, until ctx is done or the queue
// shuts down.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("queue.enqueue.closed", "document_id", job.DocumentID)
		return ErrQueueClosed
	}
	q.senders.Add(1)
	q.mu.Unlock()
	defer q.senders.Done()

	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Info("queue.enqueued", "document_id", job.DocumentID, "force", job.Force)
		return nil
	default:
	}
	q.logger.Warn("queue.full", "document_id", job.DocumentID)
	select {
	case q.ch <- job:
		q.logger.Info("queue.enqueued", "document_id", job.DocumentID, "force", job.Force)
		return nil
	case <-q.done:
		q.logger.Warn("queue.enqueue.closed", "document_id", job.DocumentID)
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops intake, then waits for workers to drain what is buffered.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	// no sender may be mid-send when the channel closes
	q.senders.Wait()
	close(q.ch)

	drained := make(chan struct{})
	go func() { defer close(drained); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-drained:
		q.logger.Info("queue.shutdown.drained")
	}
}
