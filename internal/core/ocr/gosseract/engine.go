//go:build gosseract

package gosseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/core/ocr"
)

// Engine recognizes pages in-process through libtesseract.
type Engine struct {
	tessdataDir   string
	clientFactory func() *gosseract.Client
	logger        *slog.Logger
}

// New builds the cgo-backed engine. Requires building with -tags gosseract.
func New(tessdataDir string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{tessdataDir: tessdataDir, clientFactory: gosseract.NewClient, logger: logger}
}

func (e *Engine) Name() string { return "gosseract" }

func (e *Engine) Available(_ context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = common.EngineUnavailable("libtesseract not usable", fmt.Errorf("%v", r))
		}
	}()
	if v := gosseract.Version(); v == "" {
		return common.EngineUnavailable("libtesseract reported no version", nil)
	}
	return nil
}

func (e *Engine) Recognize(ctx context.Context, img image.Image, p ocr.Params) (ocr.PageResult, error) {
	p = p.WithDefaults()
	if err := ctx.Err(); err != nil {
		return ocr.PageResult{}, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return ocr.PageResult{}, fmt.Errorf("encode page: %w", err)
	}

	c := e.clientFactory()
	defer c.Close()

	if e.tessdataDir != "" {
		if err := c.SetTessdataPrefix(e.tessdataDir); err != nil {
			return ocr.PageResult{}, common.EngineUnavailable("set tessdata prefix", err)
		}
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return ocr.PageResult{}, fmt.Errorf("set image: %w", err)
	}
	if err := c.SetLanguage(strings.Split(p.Lang, "+")...); err != nil {
		return ocr.PageResult{}, fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(p.PageSegMode())); err != nil {
		return ocr.PageResult{}, fmt.Errorf("set psm: %w", err)
	}
	vars := variables(p.Extra)
	for k, v := range vars {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return ocr.PageResult{}, fmt.Errorf("set variable %s: %w", k, err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return ocr.PageResult{}, fmt.Errorf("recognize text: %w", err)
	}
	tokens := words(c)

	return ocr.PageResult{
		Text:       strings.TrimSpace(text),
		Tokens:     tokens,
		ConfigUsed: appliedConfig(p.PageSegMode(), vars),
		Confidence: mean(tokens),
	}, nil
}

func words(c *gosseract.Client) []ocr.Token {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil
	}
	out := make([]ocr.Token, 0, len(boxes))
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		out = append(out, ocr.Token{
			Text:       b.Word,
			Left:       b.Box.Min.X,
			Top:        b.Box.Min.Y,
			Width:      b.Box.Dx(),
			Height:     b.Box.Dy(),
			Confidence: float32(b.Confidence / 100.0),
		})
	}
	return out
}

func mean(tokens []ocr.Token) float32 {
	if len(tokens) == 0 {
		return 0
	}
	var sum float32
	for _, t := range tokens {
		sum += t.Confidence
	}
	return sum / float32(len(tokens))
}
