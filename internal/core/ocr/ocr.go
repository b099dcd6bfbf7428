package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/formscan/internal/common"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	DPI      int // rasterization DPI for PDFs, default 200
	MaxPages int // 0 = no limit

	TessdataDir      string
	HeicConverter    string
	ArtifactCacheDir string

	Preprocess  PreprocessOptions
	PageTimeout time.Duration // per page preprocess+recognize; 0 = none
	StripRules  bool          // drop ruled lines / underscore runs from page text
}

// ConfigFromCommon maps the process configuration onto Config.
func ConfigFromCommon(c common.OCRConfig) Config {
	pre := DefaultPreprocessOptions()
	pre.DenoiseStrength = c.DenoiseStrength
	return Config{
		Pdftoppm:         c.Pdftoppm,
		Tesseract:        c.Tesseract,
		DPI:              c.DPI,
		MaxPages:         c.MaxPages,
		TessdataDir:      c.TessdataDir,
		HeicConverter:    c.HeicConverter,
		ArtifactCacheDir: c.ArtifactCacheDir,
		Preprocess:       pre,
		PageTimeout:      c.PageTimeout,
		StripRules:       c.StripRules,
	}
}

// ParamsFromCommon returns the recognition defaults from configuration.
func ParamsFromCommon(c common.OCRConfig) Params {
	return Params{Lang: c.Lang, PSM: Mode(c.PSM), OEM: Mode(c.OEM), Extra: c.Extra}.WithDefaults()
}

// DocumentResult is the OCR output for a whole document.
type DocumentResult struct {
	Pages        []PageResult  `json:"pages"`
	CombinedText string        `json:"combined_text"`
	PageCount    int           `json:"page_count"`
	Engine       string        `json:"engine"`
	Duration     time.Duration `json:"duration_ns"`
}

type Extractor struct {
	cfg    Config
	loader *PageLoader
	engine Engine
	logger *slog.Logger
}

// NewExtractor wires a loader and engine. A nil engine selects the tesseract CLI.
func NewExtractor(cfg Config, engine Engine, runner Runner, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if engine == nil {
		engine = NewTesseractEngine(cfg.Tesseract, cfg.TessdataDir, runner, logger)
	}
	if cfg.Preprocess == (PreprocessOptions{}) {
		cfg.Preprocess = DefaultPreprocessOptions()
	}
	loader := NewPageLoader(LoaderConfig{
		Pdftoppm:         cfg.Pdftoppm,
		DPI:              cfg.DPI,
		MaxPages:         cfg.MaxPages,
		HeicConverter:    cfg.HeicConverter,
		ArtifactCacheDir: cfg.ArtifactCacheDir,
	}, runner, logger)
	return &Extractor{cfg: cfg, loader: loader, engine: engine, logger: logger}
}

// Loader exposes the page loader so callers can swap its rasterizer.
func (e *Extractor) Loader() *PageLoader { return e.loader }

// Engine returns the recognition backend in use.
func (e *Extractor) Engine() Engine { return e.engine }

// ExtractDocument runs preprocessing and recognition over every page of path,
// in order. A failure on any page fails the whole document.
func (e *Extractor) ExtractDocument(ctx context.Context, path string, p Params) (DocumentResult, error) {
	start := time.Now()
	p = p.WithDefaults()

	if err := e.engine.Available(ctx); err != nil {
		e.logger.Error("ocr.engine.unavailable", "engine", e.engine.Name(), "error", err)
		return DocumentResult{}, err
	}
	if err := e.loader.Check(ctx, path); err != nil {
		e.logger.Error("ocr.rasterizer.unavailable", "path", path, "error", err)
		return DocumentResult{}, err
	}

	pages, err := e.loader.Load(ctx, path)
	if err != nil {
		e.logger.Error("ocr.load.failed", "path", path, "error", err)
		return DocumentResult{}, err
	}
	e.logger.Debug("ocr.document.start", "path", path, "pages", len(pages), "engine", e.engine.Name(), "config", p.ConfigString())

	results := make([]PageResult, 0, len(pages))
	texts := make([]string, 0, len(pages))
	for _, pg := range pages {
		res, err := e.recognizePage(ctx, pg, p)
		if err != nil {
			e.logger.Error("ocr.page.failed", "path", path, "page", pg.Index, "error", err)
			return DocumentResult{}, fmt.Errorf("page %d: %w", pg.Index, err)
		}
		results = append(results, res)
		texts = append(texts, res.Text)
	}

	out := DocumentResult{
		Pages:        results,
		CombinedText: strings.Join(texts, "\n\n"),
		PageCount:    len(pages),
		Engine:       e.engine.Name(),
		Duration:     time.Since(start),
	}
	e.logger.Info("ocr.document.ok",
		"path", path,
		"pages", out.PageCount,
		"chars", len(out.CombinedText),
		"elapsed_ms", out.Duration.Milliseconds(),
	)
	return out, nil
}

func (e *Extractor) recognizePage(ctx context.Context, pg Page, p Params) (PageResult, error) {
	ctx, cancel := common.WithTimeout(ctx, e.cfg.PageTimeout)
	defer cancel()

	start := time.Now()
	bin := Preprocess(pg.Image, e.cfg.Preprocess)
	if err := ctx.Err(); err != nil {
		return PageResult{}, err
	}
	res, err := e.engine.Recognize(ctx, bin, p)
	if err != nil {
		return PageResult{}, err
	}
	res.Page = pg.Index
	if e.cfg.StripRules {
		res.Text = StripFormRules(res.Text)
	}
	e.logger.Debug("ocr.page.ok",
		"page", pg.Index,
		"chars", len(res.Text),
		"tokens", len(res.Tokens),
		"confidence", res.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
