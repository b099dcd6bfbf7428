// Package queue moves document jobs through Redis with asynq so several
// formscan processes can share the processing load.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/core/async"
)

// TaskProcessDocument is the asynq task type carrying an async.Job.
const TaskProcessDocument = "document:process"

// NewProcessTask encodes job as an asynq task.
func NewProcessTask(job async.Job) (*asynq.Task, error) {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskProcessDocument, payload), nil
}

// Producer enqueues jobs into Redis. It satisfies async.Queue.
type Producer struct {
	client   *asynq.Client
	queue    string
	retries  int
	deadline time.Duration
	logger   *slog.Logger
}

func NewProducer(cfg common.QueueConfig, logger *slog.Logger) (*Producer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return &Producer{
		client:   asynq.NewClient(opt),
		queue:    queueName(cfg),
		retries:  3,
		deadline: cfg.ProcessTimeout,
		logger:   logger,
	}, nil
}

func (p *Producer) Enqueue(ctx context.Context, job async.Job) error {
	task, err := NewProcessTask(job)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.Queue(p.queue), asynq.MaxRetry(p.retries)}
	if p.deadline > 0 {
		opts = append(opts, asynq.Timeout(p.deadline))
	}
	info, err := p.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		p.logger.Error("queue.enqueue.failed", "document_id", job.DocumentID, "error", err)
		return err
	}
	p.logger.Info("queue.enqueued", "document_id", job.DocumentID, "task_id", info.ID, "queue", info.Queue)
	return nil
}

func (p *Producer) Shutdown(context.Context) {
	if err := p.client.Close(); err != nil {
		p.logger.Warn("queue.client.close_failed", "error", err)
	}
}

// Consumer runs an asynq server that processes document tasks.
type Consumer struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	proc    async.DocumentProcessor
	timeout time.Duration
	logger  *slog.Logger
}

func NewConsumer(cfg common.QueueConfig, proc async.DocumentProcessor, logger *slog.Logger) (*Consumer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if proc == nil {
		return nil, errors.New("queue: processor is required")
	}
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	concurrency := cfg.Workers
	if concurrency <= 0 {
		concurrency = 4
	}

	c := &Consumer{proc: proc, timeout: cfg.ProcessTimeout, logger: logger}
	c.server = asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 10,
			"default":      1,
		},
		// 5s, 10s, 20s ... capped at a minute
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			d := time.Duration(5*(1<<uint(n))) * time.Second
			if d > time.Minute {
				d = time.Minute
			}
			return d
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error("queue.task.failed", "type", task.Type(), "payload", string(task.Payload()), "error", err)
		}),
		Logger: slogAdapter{logger},
	})
	c.mux = asynq.NewServeMux()
	c.mux.HandleFunc(TaskProcessDocument, c.handleProcessDocument)
	return c, nil
}

// Start runs the server in the background.
func (c *Consumer) Start() error {
	c.logger.Info("queue.consumer.start")
	return c.server.Start(c.mux)
}

// Stop waits for in-flight tasks, then stops the server.
func (c *Consumer) Stop() {
	c.server.Shutdown()
	c.logger.Info("queue.consumer.stopped")
}

func (c *Consumer) handleProcessDocument(ctx context.Context, task *asynq.Task) error {
	var job async.Job
	if err := json.Unmarshal(task.Payload(), &job); err != nil {
		return fmt.Errorf("decode job: %v: %w", err, asynq.SkipRetry)
	}

	ctx, cancel := common.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	if _, err := c.proc.ProcessDocument(ctx, job.DocumentID); err != nil {
		if !retryable(err) {
			return fmt.Errorf("process %s: %v: %w", job.DocumentID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("process %s: %w", job.DocumentID, err)
	}
	c.logger.Info("queue.task.ok", "document_id", job.DocumentID, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// retryable is true only for transient model failures; bad input and
// missing engines fail the same way on every attempt.
func retryable(err error) bool {
	return errors.Is(err, common.ErrLLMRequest) || errors.Is(err, context.DeadlineExceeded)
}

func queueName(cfg common.QueueConfig) string {
	if cfg.Name == "" {
		return "formscan"
	}
	return cfg.Name
}

type slogAdapter struct{ l *slog.Logger }

func (a slogAdapter) Debug(args ...interface{}) { a.l.Debug(fmt.Sprint(args...)) }
func (a slogAdapter) Info(args ...interface{})  { a.l.Info(fmt.Sprint(args...)) }
func (a slogAdapter) Warn(args ...interface{})  { a.l.Warn(fmt.Sprint(args...)) }
func (a slogAdapter) Error(args ...interface{}) { a.l.Error(fmt.Sprint(args...)) }
func (a slogAdapter) Fatal(args ...interface{}) { a.l.Error(fmt.Sprint(args...)) }
