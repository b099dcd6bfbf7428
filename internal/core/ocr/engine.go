package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"
)

// Params are the recognition settings for one document. Zero values fall back
// to eng / psm 6 / oem 3. Mode 0 is requested with ModeZero (see Mode).
type Params struct {
	Lang  string
	PSM   int
	OEM   int
	Extra string // appended verbatim to the engine flags
}

const (
	DefaultLang = "eng"
	DefaultPSM  = 6
	DefaultOEM  = 3

	// ModeZero stands for psm 0 or oem 0, since a zero field means unset.
	ModeZero = -1
)

// Mode converts a caller-supplied mode number into a Params field value, so
// an explicit 0 survives WithDefaults. Negative input means unset.
func Mode(v int) int {
	switch {
	case v == 0:
		return ModeZero
	case v < 0:
		return 0
	}
	return v
}

// WithDefaults fills unset fields and resets out-of-range modes. It is
// idempotent.
func (p Params) WithDefaults() Params {
	if strings.TrimSpace(p.Lang) == "" {
		p.Lang = DefaultLang
	}
	if p.PSM == 0 || p.PSM < ModeZero || p.PSM > 13 {
		p.PSM = DefaultPSM
	}
	if p.OEM == 0 || p.OEM < ModeZero || p.OEM > 3 {
		p.OEM = DefaultOEM
	}
	p.Extra = strings.TrimSpace(p.Extra)
	return p
}

// PageSegMode is the psm handed to the engine.
func (p Params) PageSegMode() int { return modeValue(p.PSM) }

// EngineMode is the oem handed to the engine.
func (p Params) EngineMode() int { return modeValue(p.OEM) }

func modeValue(v int) int {
	if v == ModeZero {
		return 0
	}
	return v
}

// ConfigString renders the engine flags: "--psm N --oem M [extra]".
func (p Params) ConfigString() string {
	s := fmt.Sprintf("--psm %d --oem %d", p.PageSegMode(), p.EngineMode())
	if p.Extra != "" {
		s += " " + p.Extra
	}
	return s
}

// Token is one recognized word with its bounding box.
type Token struct {
	Text       string  `json:"text"`
	Left       int     `json:"left"`
	Top        int     `json:"top"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float32 `json:"confidence"` // 0..1, -1 when the engine gave none
	Block      int     `json:"block,omitempty"`
	Line       int     `json:"line,omitempty"`
	Word       int     `json:"word,omitempty"`
}

// PageResult is the recognition output for one page.
type PageResult struct {
	Page       int     `json:"page"`
	Text       string  `json:"text"`
	Tokens     []Token `json:"tokens,omitempty"`
	ConfigUsed string  `json:"config_used"`
	Confidence float32 `json:"confidence"` // mean word confidence 0..1, 0 when unknown
}

// Engine recognizes text in a single preprocessed page image.
type Engine interface {
	Name() string
	// Available reports ErrEngineUnavailable when the engine cannot run.
	Available(ctx context.Context) error
	Recognize(ctx context.Context, img image.Image, p Params) (PageResult, error)
}

// meanConfidence averages token confidences that are known.
func meanConfidence(tokens []Token) float32 {
	var sum float32
	var n int
	for _, t := range tokens {
		if t.Confidence < 0 {
			continue
		}
		sum += t.Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float32(n)
}
