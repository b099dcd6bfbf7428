package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/core/llm"
	"github.com/joseph-ayodele/formscan/internal/core/ocr"
	"github.com/joseph-ayodele/formscan/internal/core/pipeline"
)

type output struct {
	Path      string          `json:"path"`
	PageCount int             `json:"page_count"`
	RawText   string          `json:"raw_ocr_text"`
	Result    pipeline.Result `json:"result"`
	Question  string          `json:"question,omitempty"`
	Answer    string          `json:"answer,omitempty"`
}

func main() {
	var (
		question = flag.String("q", "", "question to answer against the extracted document")
		timeout  = flag.Duration("timeout", 5*time.Minute, "overall timeout")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: extract [-q question] <file.pdf|image>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stderr, cfg.Log)

	extractor, err := pipeline.NewOCRExtractor(cfg.OCR, logger)
	if err != nil {
		logger.Error("build extractor", "error", err)
		os.Exit(2)
	}
	completer, err := pipeline.NewCompleter(cfg.LLM, logger)
	if err != nil {
		logger.Error("build llm client", "error", err)
		os.Exit(2)
	}
	pipe := pipeline.NewFromCompleter(completer, cfg.LLM.MaxInputChars, cfg.LLM.ValidateSchema, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	doc, err := extractor.ExtractDocument(ctx, path, ocr.ParamsFromCommon(cfg.OCR))
	if err != nil {
		logger.Error("ocr failed", "path", path, "error", err)
		os.Exit(1)
	}
	res, err := pipe.Run(ctx, doc.CombinedText)
	if err != nil {
		logger.Error("pipeline failed", "path", path, "error", err)
		os.Exit(1)
	}

	out := output{Path: path, PageCount: doc.PageCount, RawText: doc.CombinedText, Result: res}
	if *question != "" {
		answer, err := llm.NewAnswerer(completer, logger).Answer(ctx, *question, res.QAContext)
		if err != nil {
			logger.Error("answer failed", "error", err)
			os.Exit(1)
		}
		out.Question, out.Answer = *question, answer
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("encode result", "error", err)
		os.Exit(1)
	}
}
