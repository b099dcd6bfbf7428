package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/formscan/internal/common"
)

// stubEngine answers "text of page <n>" for its n-th call after sleeping
// latency[n-1].
type stubEngine struct {
	unavailable error
	latency     []time.Duration
	failOn      int
	calls       atomic.Int32
}

func (s *stubEngine) Name() string { return "stub" }

func (s *stubEngine) Available(context.Context) error { return s.unavailable }

func (s *stubEngine) Recognize(ctx context.Context, img image.Image, p Params) (PageResult, error) {
	n := int(s.calls.Add(1))
	if n-1 < len(s.latency) {
		time.Sleep(s.latency[n-1])
	}
	if s.failOn == n {
		return PageResult{}, errors.New("boom")
	}
	return PageResult{Text: fmt.Sprintf("text of page %d", n), ConfigUsed: p.ConfigString()}, nil
}

type stubRasterizer struct {
	pages int
	err   error
}

func (r stubRasterizer) Available(context.Context) error { return nil }

func (r stubRasterizer) Rasterize(context.Context, string) ([]image.Image, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := make([]image.Image, r.pages)
	for i := range out {
		out[i] = image.NewGray(image.Rect(0, 0, 8, 8))
	}
	return out, nil
}

func newTestExtractor(engine Engine, rast Rasterizer) *Extractor {
	e := NewExtractor(Config{}, engine, nil, nil)
	if rast != nil {
		e.Loader().WithRasterizer(rast)
	}
	return e
}

func touch(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte("%PDF-1.4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func writeTestPNG(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "form.png")
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.White)
		}
	}
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestExtractDocument_PreservesPageOrder(t *testing.T) {
	eng := &stubEngine{latency: []time.Duration{30 * time.Millisecond, 0, 10 * time.Millisecond}}
	e := newTestExtractor(eng, stubRasterizer{pages: 3})

	res, err := e.ExtractDocument(context.Background(), touch(t, "three.pdf"), Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.PageCount != 3 || len(res.Pages) != 3 {
		t.Fatalf("expected 3 pages, got count=%d len=%d", res.PageCount, len(res.Pages))
	}
	for i, p := range res.Pages {
		if p.Page != i+1 {
			t.Errorf("page %d has index %d", i, p.Page)
		}
		if p.ConfigUsed != "--psm 6 --oem 3" {
			t.Errorf("config used = %q", p.ConfigUsed)
		}
	}
	want := "text of page 1\n\ntext of page 2\n\ntext of page 3"
	if res.CombinedText != want {
		t.Errorf("combined text = %q, want %q", res.CombinedText, want)
	}
}

func TestExtractDocument_PageFailureFailsDocument(t *testing.T) {
	eng := &stubEngine{failOn: 2}
	e := newTestExtractor(eng, stubRasterizer{pages: 3})

	res, err := e.ExtractDocument(context.Background(), touch(t, "three.pdf"), Params{})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(res.Pages) != 0 || res.CombinedText != "" {
		t.Errorf("expected no partial result, got %+v", res)
	}
	if got := eng.calls.Load(); got != 2 {
		t.Errorf("expected recognition to stop after page 2, got %d calls", got)
	}
}

func TestExtractDocument_MissingPath(t *testing.T) {
	e := newTestExtractor(&stubEngine{}, nil)
	_, err := e.ExtractDocument(context.Background(), filepath.Join(t.TempDir(), "nope.png"), Params{})
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExtractDocument_EngineCheckedFirst(t *testing.T) {
	eng := &stubEngine{unavailable: common.EngineUnavailable("no tesseract", nil)}
	e := newTestExtractor(eng, nil)
	_, err := e.ExtractDocument(context.Background(), filepath.Join(t.TempDir(), "nope.png"), Params{})
	if !errors.Is(err, common.ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
}

func TestExtractDocument_UndecodableImage(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.png")
	if err := os.WriteFile(p, []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}
	e := newTestExtractor(&stubEngine{}, nil)
	_, err := e.ExtractDocument(context.Background(), p, Params{})
	if !errors.Is(err, common.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestExtractDocument_RasterizeFailure(t *testing.T) {
	e := newTestExtractor(&stubEngine{}, stubRasterizer{err: errors.New("pdftoppm exploded")})
	_, err := e.ExtractDocument(context.Background(), touch(t, "x.pdf"), Params{})
	if !errors.Is(err, common.ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestExtractDocument_MissingPdftoppm(t *testing.T) {
	eng := &stubEngine{}
	e := NewExtractor(Config{Pdftoppm: "formscan-no-such-pdftoppm"}, eng, &fakeTesseract{missing: true}, nil)
	_, err := e.ExtractDocument(context.Background(), touch(t, "form.pdf"), Params{})
	if !errors.Is(err, common.ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
	if errors.Is(err, common.ErrDecode) {
		t.Errorf("missing renderer reported as decode error: %v", err)
	}
	if got := common.HTTPStatus(err); got != http.StatusServiceUnavailable {
		t.Errorf("http status = %d, want 503", got)
	}
	if eng.calls.Load() != 0 {
		t.Errorf("engine ran %d times", eng.calls.Load())
	}
}

func TestExtractDocument_MissingPdftoppmSkippedForImages(t *testing.T) {
	e := NewExtractor(Config{Pdftoppm: "formscan-no-such-pdftoppm"}, &stubEngine{}, &fakeTesseract{missing: true}, nil)
	if _, err := e.ExtractDocument(context.Background(), writeTestPNG(t), Params{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadPDF_RendererNotFoundIsUnavailable(t *testing.T) {
	e := newTestExtractor(&stubEngine{}, stubRasterizer{err: fmt.Errorf("pdftoppm: %w", exec.ErrNotFound)})
	_, err := e.Loader().Load(context.Background(), touch(t, "x.pdf"))
	if !errors.Is(err, common.ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
}

func TestExtractDocument_SingleImage(t *testing.T) {
	e := newTestExtractor(&stubEngine{}, nil)
	res, err := e.ExtractDocument(context.Background(), writeTestPNG(t), Params{Lang: "eng", PSM: 4, OEM: 1, Extra: "-c x=y"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.PageCount != 1 || res.Pages[0].Page != 1 {
		t.Fatalf("unexpected pages: %+v", res.Pages)
	}
	if res.Pages[0].ConfigUsed != "--psm 4 --oem 1 -c x=y" {
		t.Errorf("config used = %q", res.Pages[0].ConfigUsed)
	}
}

func TestSortPageFiles(t *testing.T) {
	files := []string{"/t/page-10.png", "/t/page-02.png", "/t/page-1.png"}
	sortPageFiles(files)
	want := []string{"/t/page-1.png", "/t/page-02.png", "/t/page-10.png"}
	for i := range want {
		if files[i] != want[i] {
			t.Fatalf("got %v, want %v", files, want)
		}
	}
}
