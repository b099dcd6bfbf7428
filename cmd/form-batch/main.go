package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/core/llm"
	"github.com/joseph-ayodele/formscan/internal/core/ocr"
	"github.com/joseph-ayodele/formscan/internal/core/pipeline"
	"github.com/joseph-ayodele/formscan/internal/export"
	"github.com/joseph-ayodele/formscan/internal/ingest"
	repo "github.com/joseph-ayodele/formscan/internal/repository"
	"github.com/joseph-ayodele/formscan/internal/server"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem  = flag.Bool("inmem", false, "use in-memory SQLite database")
		dir    = flag.String("dir", "", "directory to process forms from (required)")
		out    = flag.String("out", "", "output XLSX file path (optional, defaults to parent directory)")
		hidden = flag.Bool("hidden", false, "include hidden files and directories")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(filepath.Clean(*dir)), "forms.xlsx")
	}

	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.Log)

	if *inmem {
		cfg.Database.Driver = "sqlite"
		cfg.Database.DSN = "file::memory:"
		cfg.Database.SecretRef = ""
	}

	ctx := context.Background()
	db, err := server.ConnectDB(ctx, cfg, logger)
	if err != nil {
		os.Exit(1)
	}
	defer server.CloseDB(db, logger)

	docsRepo := repo.NewDocumentRepository(db, logger)
	chatRepo := repo.NewChatRepository(db, logger)

	extractor, err := pipeline.NewOCRExtractor(cfg.OCR, logger)
	if err != nil {
		logger.Error("failed to build OCR extractor", "error", err)
		os.Exit(1)
	}
	completer, err := pipeline.NewCompleter(cfg.LLM, logger)
	if err != nil {
		logger.Error("failed to build LLM client", "error", err)
		os.Exit(1)
	}
	pipe := pipeline.NewFromCompleter(completer, cfg.LLM.MaxInputChars, cfg.LLM.ValidateSchema, logger)
	processor := pipeline.NewProcessor(docsRepo, chatRepo, extractor, pipe,
		llm.NewAnswerer(completer, logger), ocr.ParamsFromCommon(cfg.OCR), logger)

	ingestor := ingest.NewFSIngestor(docsRepo, cfg.Storage.UploadDir, cfg.Server.MaxUploadBytes, logger)

	logger.Info("starting ingestion", "dir", *dir)
	results, stats, err := ingestor.IngestDirectory(ctx, *dir, !*hidden)
	if err != nil {
		logger.Error("failed to ingest directory", "error", err)
		os.Exit(1)
	}
	logger.Info("ingestion complete",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"deduplicated", stats.Deduplicated)

	processed, failures, skipped := 0, 0, 0
	for _, r := range results {
		if r.Err != "" {
			continue
		}
		if r.Deduplicated {
			if doc, err := docsRepo.GetByID(ctx, r.DocumentID); err == nil && doc.Processed() {
				skipped++
				continue
			}
		}
		logger.Info("processing document", "document_id", r.DocumentID, "path", r.SourcePath)
		if _, err := processor.ProcessDocument(ctx, r.DocumentID); err != nil {
			logger.Error("failed to process document", "document_id", r.DocumentID, "error", err)
			failures++
			continue
		}
		processed++
	}

	logger.Info("exporting to XLSX", "output", *out)
	data, err := export.NewService(docsRepo, chatRepo, logger).ExportDocumentsXLSX(ctx, repo.ListFilter{})
	if err != nil {
		logger.Error("failed to export documents", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	logger.Info("batch processing complete",
		"processed", processed,
		"skipped", skipped,
		"failures", failures,
		"output_file", *out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files ingested: %d\n", stats.Succeeded)
	fmt.Printf("- Documents processed: %d\n", processed)
	fmt.Printf("- Already processed: %d\n", skipped)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Output: %s\n", *out)
	if failures > 0 {
		os.Exit(1)
	}
}
