package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/formscan/constants"
	"github.com/joseph-ayodele/formscan/internal/common"
)

// Page is one rasterized page. Index starts at 1.
type Page struct {
	Index int
	Image image.Image
}

// Rasterizer renders every page of a PDF to an image, in page order.
// Available reports ErrEngineUnavailable when the renderer cannot run.
type Rasterizer interface {
	Available(ctx context.Context) error
	Rasterize(ctx context.Context, path string) ([]image.Image, error)
}

// LoaderConfig configures PageLoader.
type LoaderConfig struct {
	Pdftoppm         string // binary name or absolute path; if empty -> "pdftoppm"
	DPI              int    // rasterization DPI, default 200
	MaxPages         int    // 0 = no limit
	HeicConverter    string // heif-convert | magick | sips
	ArtifactCacheDir string
}

// PageLoader turns a document path into ordered page images.
type PageLoader struct {
	cfg        LoaderConfig
	runner     Runner
	rasterizer Rasterizer
	logger     *slog.Logger
}

func NewPageLoader(cfg LoaderConfig, runner Runner, logger *slog.Logger) *PageLoader {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 200
	}
	return &PageLoader{
		cfg:        cfg,
		runner:     runner,
		rasterizer: &pdftoppm{bin: cfg.Pdftoppm, dpi: cfg.DPI, maxPages: cfg.MaxPages, runner: runner, logger: logger},
		logger:     logger,
	}
}

// WithRasterizer swaps the PDF rasterizer.
func (l *PageLoader) WithRasterizer(r Rasterizer) *PageLoader {
	l.rasterizer = r
	return l
}

// Check verifies the converters path needs before any work starts. Only
// PDFs depend on an external renderer.
func (l *PageLoader) Check(ctx context.Context, path string) error {
	if constants.NormalizeExt(filepath.Ext(path)) != "pdf" {
		return nil
	}
	return l.rasterizer.Available(ctx)
}

// Load returns the pages of path in document order. A missing path yields
// ErrNotFound; an unreadable page yields ErrDecode.
func (l *PageLoader) Load(ctx context.Context, path string) ([]Page, error) {
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.NotFound("document not found: %s", path)
		}
		return nil, common.DecodeFailure("stat "+path, err)
	}
	if st.IsDir() {
		return nil, common.DecodeFailure(path+" is a directory", nil)
	}

	ext := constants.NormalizeExt(filepath.Ext(path))
	if ext == "pdf" {
		return l.loadPDF(ctx, path)
	}

	if constants.IsHEICExt(ext) {
		out, cleanup, err := convertHEICtoPNG(ctx, l.runner, l.logger, l.cfg.HeicConverter, path, l.cfg.ArtifactCacheDir, contentHashFromCtx(ctx))
		if err != nil {
			return nil, common.DecodeFailure("convert heic", err)
		}
		if cleanup != nil {
			defer cleanup()
		}
		path = out
	}

	img, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	return []Page{{Index: 1, Image: img}}, nil
}

func (l *PageLoader) loadPDF(ctx context.Context, path string) ([]Page, error) {
	expected := pdfPageCount(path, l.logger)

	imgs, err := l.rasterizer.Rasterize(ctx, path)
	if err != nil {
		if errors.Is(err, common.ErrDecode) || errors.Is(err, common.ErrEngineUnavailable) {
			return nil, err
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, common.EngineUnavailable("pdftoppm binary not found", err)
		}
		return nil, common.DecodeFailure("rasterize pdf", err)
	}
	if len(imgs) == 0 {
		return nil, common.DecodeFailure("pdf rendered no pages", nil)
	}
	if expected > 0 && expected != len(imgs) && (l.cfg.MaxPages == 0 || len(imgs) < l.cfg.MaxPages) {
		l.logger.Warn("ocr.pdf.page_count_mismatch", "path", path, "expected", expected, "rendered", len(imgs))
	}

	pages := make([]Page, len(imgs))
	for i, img := range imgs {
		pages[i] = Page{Index: i + 1, Image: img}
	}
	return pages, nil
}

// pdfPageCount reads the page tree with a pure-Go parser. Some valid PDFs are
// beyond the parser, so 0 means "unknown", not "invalid".
func pdfPageCount(path string, logger *slog.Logger) (n int) {
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("ocr.pdf.inspect_panic", "path", path, "panic", r)
			n = 0
		}
	}()
	f, r, err := pdflib.Open(path)
	if err != nil {
		logger.Debug("ocr.pdf.inspect_failed", "path", path, "error", err)
		return 0
	}
	defer f.Close()
	return r.NumPage()
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, common.NotFound("document not found: %s", path)
		}
		return nil, common.DecodeFailure("open "+path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, common.DecodeFailure("decode "+filepath.Base(path), err)
	}
	return img, nil
}

type pdftoppm struct {
	bin      string
	dpi      int
	maxPages int
	runner   Runner
	logger   *slog.Logger
}

func (p *pdftoppm) Available(context.Context) error {
	if _, err := p.runner.LookPath(p.bin); err != nil {
		return common.EngineUnavailable(fmt.Sprintf("pdftoppm binary %q not found; install poppler-utils or set PDFTOPPM_BIN", p.bin), err)
	}
	return nil
}

func (p *pdftoppm) Rasterize(ctx context.Context, path string) ([]image.Image, error) {
	tmpDir, err := os.MkdirTemp("", "formscan-pp-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			p.logger.Warn("ocr.pdf.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", strconv.Itoa(p.dpi), "-png"}
	if p.maxPages > 0 {
		args = append(args, "-l", strconv.Itoa(p.maxPages))
	}
	args = append(args, path, prefix)
	// pdftoppm -r 200 -png <in.pdf> <tmp/page>
	if _, errb, err := p.runner.Run(ctx, p.bin, p.logger, args...); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w (%s)", err, truncate(string(errb), 512))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sortPageFiles(matches)

	imgs := make([]image.Image, 0, len(matches))
	for _, m := range matches {
		img, err := decodeFile(m)
		if err != nil {
			return nil, err
		}
		imgs = append(imgs, img)
	}
	return imgs, nil
}

// sortPageFiles orders "page-N.png" files by N; pdftoppm zero-pads N only
// to the width of the last page number.
func sortPageFiles(files []string) {
	num := func(p string) int {
		base := strings.TrimSuffix(filepath.Base(p), ".png")
		i := strings.LastIndexByte(base, '-')
		n, err := strconv.Atoi(base[i+1:])
		if err != nil {
			return 0
		}
		return n
	}
	sort.SliceStable(files, func(i, j int) bool { return num(files[i]) < num(files[j]) })
}
