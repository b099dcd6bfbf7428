package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/core/ocr"
	"github.com/joseph-ayodele/formscan/internal/core/pipeline"
)

func main() {
	cfg := common.LoadConfig()

	var (
		lang    = flag.String("lang", cfg.OCR.Lang, "tesseract language")
		psm     = flag.Int("psm", cfg.OCR.PSM, "page segmentation mode")
		oem     = flag.Int("oem", cfg.OCR.OEM, "OCR engine mode")
		extra   = flag.String("extra", cfg.OCR.Extra, "extra tesseract flags")
		engine  = flag.String("engine", cfg.OCR.Engine, "tesseract | gosseract")
		tokens  = flag.Bool("tokens", false, "include word tokens in the output")
		timeout = flag.Duration("timeout", 2*time.Minute, "overall timeout")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: runocr [flags] <file.pdf|image>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg.Log.Format = "json"
	logger := common.NewLogger(os.Stderr, cfg.Log)
	cfg.OCR.Engine = *engine

	extractor, err := pipeline.NewOCRExtractor(cfg.OCR, logger)
	if err != nil {
		logger.Error("build extractor", "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	res, err := extractor.ExtractDocument(ctx, path, ocr.Params{Lang: *lang, PSM: ocr.Mode(*psm), OEM: ocr.Mode(*oem), Extra: *extra})
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err)
		os.Exit(1)
	}
	if !*tokens {
		for i := range res.Pages {
			res.Pages[i].Tokens = nil
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logger.Error("encode result", "error", err)
		os.Exit(1)
	}
	logger.Info("text extraction OK",
		"engine", res.Engine,
		"pages", res.PageCount,
		"bytes", len(res.CombinedText),
		"duration_ms", res.Duration.Milliseconds(),
	)
}
