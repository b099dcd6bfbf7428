package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/formscan/internal/core/async"
)

// Service ingests documents and hands new ones to the processing queue.
type Service struct {
	ingestor Ingestor
	queue    async.Queue
	logger   *slog.Logger
}

func NewService(ing Ingestor, q async.Queue, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ingestor: ing, queue: q, logger: logger}
}

// IngestFile ingests one path or AFS URL and enqueues it unless it was a
// duplicate and force is false.
func (s *Service) IngestFile(ctx context.Context, location string, force bool) (IngestionResult, error) {
	r, err := s.ingestor.IngestPath(ctx, location)
	if err != nil {
		s.logger.Error("ingest.file.failed", "location", location, "error", err)
		return IngestionResult{}, err
	}
	return r, s.enqueue(ctx, r, force)
}

// IngestUpload stores uploaded bytes and enqueues the document.
func (s *Service) IngestUpload(ctx context.Context, filename string, data []byte, force bool) (IngestionResult, error) {
	r, err := s.ingestor.IngestBytes(ctx, filename, data)
	if err != nil {
		s.logger.Error("ingest.upload.failed", "filename", filename, "error", err)
		return IngestionResult{}, err
	}
	return r, s.enqueue(ctx, r, force)
}

// DirectoryIngestResult represents directory ingestion results.
type DirectoryIngestResult struct {
	Statistics DirStats
	Results    []IngestionResult
}

// IngestDirectory ingests every supported file under root and enqueues the new ones.
func (s *Service) IngestDirectory(ctx context.Context, root string, skipHidden, force bool) (*DirectoryIngestResult, error) {
	results, stats, err := s.ingestor.IngestDirectory(ctx, root, skipHidden)
	if err != nil {
		return nil, err
	}
	for i := range results {
		if results[i].Err != "" {
			continue
		}
		if err := s.enqueue(ctx, results[i], force); err != nil {
			results[i].Err = err.Error()
		}
	}
	return &DirectoryIngestResult{Statistics: stats, Results: results}, nil
}

// Watch ingests files as they appear under cfg.Roots until ctx is done.
func (s *Service) Watch(ctx context.Context, cfg WatchConfig) error {
	events, errs, err := StartWatcher(ctx, cfg, s.logger)
	if err != nil {
		return err
	}
	s.logger.Info("ingest.watch.started", "roots", cfg.Roots)
	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := s.IngestFile(ctx, p, false); err != nil {
				s.logger.Warn("ingest.watch.skip", "path", p, "error", err)
			}
		case err, ok := <-errs:
			if ok && err != nil {
				s.logger.Warn("ingest.watch.error", "error", err)
			}
		}
	}
}

func (s *Service) enqueue(ctx context.Context, r IngestionResult, force bool) error {
	if s.queue == nil {
		return nil
	}
	if r.Deduplicated && !force {
		s.logger.Info("ingest.skip_duplicate", "document_id", r.DocumentID, "path", r.SourcePath)
		return nil
	}
	if err := s.queue.Enqueue(ctx, async.Job{
		DocumentID:  r.DocumentID,
		Force:       force,
		SubmittedAt: time.Now(),
	}); err != nil {
		s.logger.Error("ingest.enqueue.failed", "document_id", r.DocumentID, "error", err)
		return err
	}
	return nil
}
