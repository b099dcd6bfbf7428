package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/formscan/internal/common"
)

// TesseractEngine drives the tesseract CLI through a Runner. One invocation
// produces both the plain text and the word-level TSV.
type TesseractEngine struct {
	bin         string
	tessdataDir string
	runner      Runner
	logger      *slog.Logger
}

func NewTesseractEngine(bin, tessdataDir string, runner Runner, logger *slog.Logger) *TesseractEngine {
	if bin == "" {
		bin = "tesseract"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TesseractEngine{bin: bin, tessdataDir: tessdataDir, runner: runner, logger: logger}
}

func (t *TesseractEngine) Name() string { return "tesseract" }

func (t *TesseractEngine) Available(_ context.Context) error {
	if _, err := t.runner.LookPath(t.bin); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return common.EngineUnavailable(fmt.Sprintf("tesseract binary %q not found; install it or set TESSERACT_BIN", t.bin), err)
		}
		return common.EngineUnavailable("tesseract lookup failed", err)
	}
	if t.tessdataDir != "" {
		if st, err := os.Stat(t.tessdataDir); err != nil || !st.IsDir() {
			return common.EngineUnavailable(fmt.Sprintf("tessdata dir %q not usable", t.tessdataDir), err)
		}
	}
	return nil
}

func (t *TesseractEngine) Recognize(ctx context.Context, img image.Image, p Params) (PageResult, error) {
	p = p.WithDefaults()

	tmpDir, err := os.MkdirTemp("", "formscan-tess-*")
	if err != nil {
		return PageResult{}, err
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	in := filepath.Join(tmpDir, "page.png")
	if err := writePNG(in, img); err != nil {
		return PageResult{}, fmt.Errorf("write page image: %w", err)
	}
	outBase := filepath.Join(tmpDir, "out")

	// tesseract <in.png> <outbase> -l <lang> --psm N --oem M [extra] txt tsv
	args := []string{in, outBase, "-l", p.Lang}
	if t.tessdataDir != "" {
		args = append(args, "--tessdata-dir", t.tessdataDir)
	}
	args = append(args, "--psm", strconv.Itoa(p.PageSegMode()), "--oem", strconv.Itoa(p.EngineMode()))
	args = append(args, strings.Fields(p.Extra)...)
	args = append(args, "txt", "tsv")

	if _, errb, err := t.runner.Run(ctx, t.bin, t.logger, args...); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return PageResult{}, common.EngineUnavailable("tesseract binary not found", err)
		}
		return PageResult{}, fmt.Errorf("tesseract: %w (%s)", err, truncate(string(errb), 512))
	}

	txt, err := os.ReadFile(outBase + ".txt")
	if err != nil {
		return PageResult{}, fmt.Errorf("read tesseract text: %w", err)
	}
	var tokens []Token
	if tsv, err := os.ReadFile(outBase + ".tsv"); err == nil {
		tokens = parseTSV(string(tsv))
	} else {
		t.logger.Warn("ocr.tesseract.tsv_missing", "error", err)
	}

	return PageResult{
		Text:       strings.TrimSpace(string(txt)),
		Tokens:     tokens,
		ConfigUsed: p.ConfigString(),
		Confidence: meanConfidence(tokens),
	}, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// parseTSV keeps word rows (level 5) of tesseract's TSV output.
// Columns: level page_num block_num par_num line_num word_num left top width height conf text
func parseTSV(s string) []Token {
	var tokens []Token
	for i, ln := range strings.Split(s, "\n") {
		if i == 0 {
			continue // header
		}
		ln = strings.TrimRight(ln, "\r")
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		text := strings.TrimSpace(cols[11])
		if text == "" {
			continue
		}
		conf := float32(-1)
		if v, err := strconv.ParseFloat(cols[10], 64); err == nil && v >= 0 {
			conf = float32(v / 100.0)
		}
		tokens = append(tokens, Token{
			Text:       text,
			Left:       atoi(cols[6]),
			Top:        atoi(cols[7]),
			Width:      atoi(cols[8]),
			Height:     atoi(cols[9]),
			Confidence: conf,
			Block:      atoi(cols[2]),
			Line:       atoi(cols[4]),
			Word:       atoi(cols[5]),
		})
	}
	return tokens
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
