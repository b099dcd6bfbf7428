//go:build !gosseract

package gosseract

import (
	"context"
	"image"
	"log/slog"

	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/core/ocr"
)

// Engine is a placeholder when the binary is built without libtesseract.
type Engine struct{}

func New(string, *slog.Logger) *Engine { return &Engine{} }

func (e *Engine) Name() string { return "gosseract" }

func (e *Engine) Available(context.Context) error {
	return common.EngineUnavailable("built without gosseract support; rebuild with -tags gosseract or set OCR_ENGINE=tesseract", nil)
}

func (e *Engine) Recognize(ctx context.Context, _ image.Image, _ ocr.Params) (ocr.PageResult, error) {
	return ocr.PageResult{}, e.Available(ctx)
}
