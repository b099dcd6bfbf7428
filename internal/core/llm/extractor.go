package llm

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/formscan/constants"
	"github.com/joseph-ayodele/formscan/internal/core/fields"
)

// Extraction is the enforced FieldSet plus how each value was obtained.
type Extraction struct {
	Fields          fields.FieldSet
	Provenance      map[string]fields.Source
	HeuristicFilled []string
	Parsed          bool // model reply was a JSON object
	SchemaValid     bool // reply matched FieldSetSchema exactly
	Truncated       bool
}

// FieldExtractor pulls the form schema out of cleaned text. Model values win;
// regex heuristics fill what the model left empty; formats are enforced last.
type FieldExtractor struct {
	llm      Completer
	maxChars int
	validate bool
	logger   *slog.Logger
}

type ExtractorOption func(*FieldExtractor)

// WithSchemaValidation toggles the diagnostic jsonschema check of model replies.
func WithSchemaValidation(on bool) ExtractorOption {
	return func(e *FieldExtractor) { e.validate = on }
}

func NewFieldExtractor(c Completer, maxChars int, logger *slog.Logger, opts ...ExtractorOption) *FieldExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxInputChars
	}
	e := &FieldExtractor{llm: c, maxChars: maxChars, validate: true, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract only fails when the model call fails. An unparseable reply yields
// an all-heuristic FieldSet carrying raw_extraction.
func (e *FieldExtractor) Extract(ctx context.Context, cleanText string) (Extraction, error) {
	start := time.Now()
	clipped, truncated := Clip(cleanText, e.maxChars)
	if truncated {
		e.logger.Warn("llm.truncated", "stage", "extract", "input_chars", utf8.RuneCountInString(cleanText), "max_chars", e.maxChars)
	}

	reply, err := e.llm.Complete(ctx, CompletionRequest{
		Prompt:    extractPrompt(clipped),
		MaxTokens: ExtractMaxTokens,
	})
	if err != nil {
		e.logger.Error("llm.extract.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return Extraction{}, err
	}
	reply = strings.TrimSpace(reply)

	draft := fields.NewDraft()
	out := Extraction{Truncated: truncated}

	obj, perr := parseObject(reply)
	if perr != nil {
		e.logger.Warn("llm.extract.parse_failed", "error", perr, "reply", truncate(reply, 200))
		draft.SetRawExtraction(reply)
	} else {
		out.Parsed = true
		for _, k := range constants.FieldNames() {
			if s, ok := obj[k].(string); ok {
				draft.SetModel(k, s)
			}
		}
		if e.validate {
			if verr := ValidateFieldSetJSON([]byte(stripCodeBlock(reply))); verr != nil {
				e.logger.Debug("llm.extract.schema_mismatch", "error", verr)
			} else {
				out.SchemaValid = true
			}
		}
	}

	out.HeuristicFilled = draft.FillHeuristic(fields.Heuristic(clipped))
	out.Provenance = draft.Provenance()
	out.Fields = fields.Enforce(draft.FieldSet())

	e.logger.Info("llm.extract.ok",
		"parsed", out.Parsed,
		"schema_valid", out.SchemaValid,
		"heuristic_filled", out.HeuristicFilled,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
