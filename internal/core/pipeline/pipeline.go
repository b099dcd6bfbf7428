// Package pipeline runs the text stages over OCR output and drives whole
// documents through OCR, extraction and persistence.
package pipeline

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/formscan/internal/core/fields"
	"github.com/joseph-ayodele/formscan/internal/core/llm"
)

// Truncation reports which stages saw clipped input.
type Truncation struct {
	NormalizerInput bool `json:"normalizer_input"`
	ExtractorInput  bool `json:"extractor_input"`
	OriginalChars   int  `json:"original_chars"`
}

// Any is true when either stage clipped its input.
func (t Truncation) Any() bool { return t.NormalizerInput || t.ExtractorInput }

// Result is the immutable output of one pipeline run.
type Result struct {
	EnhancedText string                   `json:"enhanced_text"`
	Fields       fields.FieldSet          `json:"extracted_fields"`
	Provenance   map[string]fields.Source `json:"provenance"`
	QAContext    string                   `json:"qa_context"`
	Truncation   Truncation               `json:"truncation"`
}

// Pipeline is Normalizer → Extractor → qa context.
type Pipeline struct {
	normalizer *llm.Normalizer
	extractor  *llm.FieldExtractor
	logger     *slog.Logger
}

func New(normalizer *llm.Normalizer, extractor *llm.FieldExtractor, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{normalizer: normalizer, extractor: extractor, logger: logger}
}

// NewFromCompleter builds both text stages over one model.
func NewFromCompleter(c llm.Completer, maxChars int, validateSchema bool, logger *slog.Logger) *Pipeline {
	return New(
		llm.NewNormalizer(c, maxChars, logger),
		llm.NewFieldExtractor(c, maxChars, logger, llm.WithSchemaValidation(validateSchema)),
		logger,
	)
}

// Run normalizes raw OCR text and extracts fields from the normalized text.
// Model errors are returned unchanged.
func (p *Pipeline) Run(ctx context.Context, rawText string) (Result, error) {
	start := time.Now()

	norm, err := p.normalizer.Normalize(ctx, rawText)
	if err != nil {
		return Result{}, err
	}
	ext, err := p.extractor.Extract(ctx, norm.Text)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		EnhancedText: norm.Text,
		Fields:       ext.Fields,
		Provenance:   ext.Provenance,
		QAContext:    BuildQAContext(ext.Fields, norm.Text),
		Truncation: Truncation{
			NormalizerInput: norm.Truncated,
			ExtractorInput:  ext.Truncated,
			OriginalChars:   utf8.RuneCountInString(rawText),
		},
	}
	p.logger.Info("pipeline.run.ok",
		"raw_chars", res.Truncation.OriginalChars,
		"enhanced_chars", utf8.RuneCountInString(res.EnhancedText),
		"truncated", res.Truncation.Any(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// BuildQAContext renders the grounding context handed to the answerer.
func BuildQAContext(fs fields.FieldSet, enhancedText string) string {
	return "Structured fields:\n" + fs.String() + "\n\nClean text:\n" + enhancedText
}
