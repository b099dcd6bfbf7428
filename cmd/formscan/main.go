package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"google.golang.org/grpc"

	"github.com/joseph-ayodele/formscan/internal/api"
	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/core/async"
	"github.com/joseph-ayodele/formscan/internal/core/llm"
	"github.com/joseph-ayodele/formscan/internal/core/ocr"
	"github.com/joseph-ayodele/formscan/internal/core/pipeline"
	"github.com/joseph-ayodele/formscan/internal/export"
	"github.com/joseph-ayodele/formscan/internal/ingest"
	"github.com/joseph-ayodele/formscan/internal/queue"
	repo "github.com/joseph-ayodele/formscan/internal/repository"
	"github.com/joseph-ayodele/formscan/internal/server"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	if cfg.Server.EnableGops {
		if err := agent.Listen(agent.Options{ShutdownCleanup: true}); err != nil {
			logger.Warn("gops agent failed to start", "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := server.ConnectDB(ctx, cfg, logger)
	if err != nil {
		os.Exit(1)
	}
	defer server.CloseDB(db, logger)
	if err := server.PingDB(ctx, db, logger, 5*time.Second); err != nil {
		os.Exit(1)
	}

	docsRepo := repo.NewDocumentRepository(db, logger)
	chatRepo := repo.NewChatRepository(db, logger)

	// OCR stage
	extractor, err := pipeline.NewOCRExtractor(cfg.OCR, logger)
	if err != nil {
		logger.Error("failed to build OCR extractor", "error", err)
		os.Exit(2)
	}
	if err := extractor.Engine().Available(ctx); err != nil {
		logger.Warn("OCR engine not available; documents will fail until it is installed", "error", err)
	}

	// LLM stages
	completer, err := pipeline.NewCompleter(cfg.LLM, logger)
	if err != nil {
		logger.Error("failed to build LLM client", "error", err)
		os.Exit(2)
	}
	pipe := pipeline.NewFromCompleter(completer, cfg.LLM.MaxInputChars, cfg.LLM.ValidateSchema, logger)
	answerer := llm.NewAnswerer(completer, logger)

	params := ocr.ParamsFromCommon(cfg.OCR)
	processor := pipeline.NewProcessor(docsRepo, chatRepo, extractor, pipe, answerer, params, logger)

	jobs, stopJobs, err := startQueue(ctx, cfg.Queue, processor, logger)
	if err != nil {
		logger.Error("failed to start job queue", "error", err)
		os.Exit(1)
	}

	ingestor := ingest.NewFSIngestor(docsRepo, cfg.Storage.UploadDir, cfg.Server.MaxUploadBytes, logger)
	ingestService := ingest.NewService(ingestor, jobs, logger)
	exportService := export.NewService(docsRepo, chatRepo, logger)

	if cfg.Storage.WatchDir != "" {
		go func() {
			err := ingestService.Watch(ctx, ingest.WatchConfig{
				Roots:       []string{cfg.Storage.WatchDir},
				InitialScan: true,
				SkipHidden:  true,
				Debounce:    500 * time.Millisecond,
			})
			if err != nil {
				logger.Error("watcher stopped", "dir", cfg.Storage.WatchDir, "error", err)
			}
		}()
	}

	var grpcServer *grpc.Server
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		gs, _ := server.NewGRPCServer(server.NewDocumentServer(server.Deps{
			OCR:       extractor,
			Pipeline:  pipe,
			Answerer:  answerer,
			Processor: processor,
			Documents: docsRepo,
			Ingest:    ingestService,
			Export:    exportService,
			Params:    params,
		}, logger), logger)
		grpcServer = gs
		logger.Info("gRPC listening", "addr", cfg.Server.GRPCAddr)
		go func() {
			if err := gs.Serve(lis); err != nil {
				logger.Error("gRPC serve error", "error", err)
				stop()
			}
		}()
	}

	var httpServer *http.Server
	if cfg.Server.HTTPAddr != "" {
		httpServer = &http.Server{
			Addr: cfg.Server.HTTPAddr,
			Handler: api.NewServer(api.Options{
				Ingestor:       ingestor,
				Processor:      processor,
				Documents:      docsRepo,
				Export:         exportService,
				Queue:          jobs,
				MaxUploadBytes: cfg.Server.MaxUploadBytes,
				Ready: func(ctx context.Context) error {
					return db.HealthCheck(ctx, 2*time.Second)
				},
			}, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		logger.Info("HTTP listening", "addr", cfg.Server.HTTPAddr)
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP serve error", "error", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	stopJobs(shutdownCtx)
	logger.Info("stopped")
}

// startQueue returns the job queue documents are submitted to. With REDIS_URL
// set jobs go through asynq and this process also runs the consumer;
// otherwise an in-process worker pool handles them.
func startQueue(ctx context.Context, cfg common.QueueConfig, proc async.DocumentProcessor, logger *slog.Logger) (async.Queue, func(context.Context), error) {
	if cfg.RedisURL == "" {
		q := async.NewProcessorQueue(proc, logger,
			async.WithWorkers(cfg.Workers),
			async.WithQueueSize(cfg.Size),
			async.WithProcessTimeout(cfg.ProcessTimeout),
		)
		logger.Info("using in-process worker pool", "workers", cfg.Workers)
		return q, q.Shutdown, nil
	}

	if err := queue.Ping(ctx, cfg.RedisURL, 3*time.Second); err != nil {
		return nil, nil, err
	}
	producer, err := queue.NewProducer(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	consumer, err := queue.NewConsumer(cfg, proc, logger)
	if err != nil {
		producer.Shutdown(ctx)
		return nil, nil, err
	}
	if err := consumer.Start(); err != nil {
		producer.Shutdown(ctx)
		return nil, nil, err
	}
	logger.Info("using redis job queue", "queue", cfg.Name, "workers", cfg.Workers)
	return producer, func(ctx context.Context) {
		consumer.Stop()
		producer.Shutdown(ctx)
	}, nil
}
