package ocr

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"testing"

	"github.com/joseph-ayodele/formscan/internal/common"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t600\t400\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t10\t10\t200\t20\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t10\t60\t20\t96.5\tName:\n" +
	"5\t1\t1\t1\t1\t2\t80\t10\t50\t20\t89\tJane\n" +
	"5\t1\t1\t1\t1\t3\t140\t10\t30\t20\t-1\t \n"

// fakeTesseract writes the output files tesseract would produce.
type fakeTesseract struct {
	missing bool
	args    []string
}

func (f *fakeTesseract) LookPath(name string) (string, error) {
	if f.missing {
		return "", exec.ErrNotFound
	}
	return "/usr/bin/" + name, nil
}

func (f *fakeTesseract) Run(_ context.Context, _ string, _ *slog.Logger, args ...string) ([]byte, []byte, error) {
	f.args = args
	base := args[1]
	if err := os.WriteFile(base+".txt", []byte("  Name: Jane\n\n"), 0o644); err != nil {
		return nil, nil, err
	}
	if err := os.WriteFile(base+".tsv", []byte(sampleTSV), 0o644); err != nil {
		return nil, nil, err
	}
	return nil, nil, nil
}

func TestTesseractEngine_Recognize(t *testing.T) {
	r := &fakeTesseract{}
	eng := NewTesseractEngine("tesseract", "", r, nil)

	res, err := eng.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)), Params{Extra: "-c preserve_interword_spaces=1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "Name: Jane" {
		t.Errorf("text = %q", res.Text)
	}
	if res.ConfigUsed != "--psm 6 --oem 3 -c preserve_interword_spaces=1" {
		t.Errorf("config = %q", res.ConfigUsed)
	}
	if len(res.Tokens) != 2 || res.Tokens[1].Text != "Jane" || res.Tokens[1].Left != 80 {
		t.Fatalf("tokens = %+v", res.Tokens)
	}
	if res.Confidence < 0.92 || res.Confidence > 0.93 {
		t.Errorf("confidence = %v", res.Confidence)
	}
	for _, want := range []string{"-l", "eng", "--psm", "6", "--oem", "3", "-c", "preserve_interword_spaces=1", "txt", "tsv"} {
		if !slices.Contains(r.args, want) {
			t.Errorf("args %v missing %q", r.args, want)
		}
	}
}

func TestTesseractEngine_Unavailable(t *testing.T) {
	eng := NewTesseractEngine("tesseract", "", &fakeTesseract{missing: true}, nil)
	if err := eng.Available(context.Background()); !errors.Is(err, common.ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
}

func TestParseTSV_SkipsNonWordRows(t *testing.T) {
	toks := parseTSV(sampleTSV)
	if len(toks) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(toks))
	}
	if c := toks[0].Confidence; c < 0.964 || c > 0.966 {
		t.Errorf("conf = %v", toks[0].Confidence)
	}
}

func TestParams_WithDefaults(t *testing.T) {
	p := Params{OEM: 7}.WithDefaults()
	if p.Lang != "eng" || p.PSM != 6 || p.OEM != 3 {
		t.Errorf("defaults not applied: %+v", p)
	}
	if got := (Params{Lang: "eng", PSM: 11, OEM: 1}).ConfigString(); got != "--psm 11 --oem 1" {
		t.Errorf("config string = %q", got)
	}
}

func TestParams_ZeroValueUsesLSTM(t *testing.T) {
	p := Params{}.WithDefaults()
	if got := p.ConfigString(); got != "--psm 6 --oem 3" {
		t.Errorf("config string = %q, want --psm 6 --oem 3", got)
	}
	if again := p.WithDefaults(); again != p {
		t.Errorf("WithDefaults not idempotent: %+v vs %+v", again, p)
	}
}

func TestParams_ExplicitModeZero(t *testing.T) {
	p := Params{PSM: Mode(0), OEM: Mode(0)}.WithDefaults().WithDefaults()
	if got := p.ConfigString(); got != "--psm 0 --oem 0" {
		t.Errorf("config string = %q, want --psm 0 --oem 0", got)
	}
	if p.PageSegMode() != 0 || p.EngineMode() != 0 {
		t.Errorf("modes = %d/%d", p.PageSegMode(), p.EngineMode())
	}
	if Mode(4) != 4 {
		t.Errorf("Mode(4) = %d", Mode(4))
	}
	if got := (Params{PSM: Mode(-1)}).WithDefaults().PageSegMode(); got != DefaultPSM {
		t.Errorf("negative psm should fall back to default, got %d", got)
	}
}

func TestTesseractEngine_PassesExplicitLegacyEngine(t *testing.T) {
	r := &fakeTesseract{}
	eng := NewTesseractEngine("tesseract", "", r, nil)
	res, err := eng.Recognize(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)), Params{OEM: ModeZero})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	args := strings.Join(r.args, " ")
	if !strings.Contains(args, "--psm 6 --oem 0") {
		t.Errorf("args = %q", args)
	}
	if res.ConfigUsed != "--psm 6 --oem 0" {
		t.Errorf("config = %q", res.ConfigUsed)
	}
}
