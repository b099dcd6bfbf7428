package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/core/llm"
	"github.com/joseph-ayodele/formscan/internal/core/llm/ollama"
	"github.com/joseph-ayodele/formscan/internal/core/llm/openai"
	"github.com/joseph-ayodele/formscan/internal/core/ocr"
	"github.com/joseph-ayodele/formscan/internal/core/ocr/gosseract"
)

// NewCompleter selects the model backend from configuration and wraps it
// with retries and a per-call timeout.
func NewCompleter(cfg common.LLMConfig, logger *slog.Logger) (llm.Completer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var base llm.Completer
	switch cfg.Provider {
	case "", "openai":
		base = openai.NewClient(openai.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, logger)
	case "ollama":
		base = ollama.NewClient(cfg.OllamaModel,
			ollama.WithBaseURL(cfg.OllamaBaseURL),
			ollama.WithTimeout(cfg.Timeout),
			ollama.WithLogger(logger),
		)
	default:
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown LLM_PROVIDER %q", cfg.Provider), common.ErrInvalidInput)
	}
	logger.Debug("pipeline.llm.backend", "provider", cfg.Provider, "max_retries", cfg.MaxRetries, "timeout", cfg.Timeout)
	return llm.NewRetryingCompleter(base, logger,
		llm.WithAttempts(cfg.MaxRetries),
		llm.WithCallTimeout(cfg.Timeout),
	), nil
}

// NewOCREngine returns the recognition backend named by OCR_ENGINE.
func NewOCREngine(cfg common.OCRConfig, runner ocr.Runner, logger *slog.Logger) (ocr.Engine, error) {
	switch cfg.Engine {
	case "", "tesseract":
		return ocr.NewTesseractEngine(cfg.Tesseract, cfg.TessdataDir, runner, logger), nil
	case "gosseract":
		return gosseract.New(cfg.TessdataDir, logger), nil
	default:
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown OCR_ENGINE %q", cfg.Engine), common.ErrInvalidInput)
	}
}

// NewOCRExtractor builds the document OCR aggregator from configuration.
func NewOCRExtractor(cfg common.OCRConfig, logger *slog.Logger) (*ocr.Extractor, error) {
	runner := ocr.ExecRunner{}
	engine, err := NewOCREngine(cfg, runner, logger)
	if err != nil {
		return nil, err
	}
	return ocr.NewExtractor(ocr.ConfigFromCommon(cfg), engine, runner, logger), nil
}
