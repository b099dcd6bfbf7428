package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/formscan/constants"
	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/core/ocr"
	"github.com/joseph-ayodele/formscan/internal/entity"
	"github.com/joseph-ayodele/formscan/internal/repository"
)

// DocumentOCR turns a document path into page text.
type DocumentOCR interface {
	ExtractDocument(ctx context.Context, path string, p ocr.Params) (ocr.DocumentResult, error)
}

// TextPipeline turns raw OCR text into enhanced text and fields.
type TextPipeline interface {
	Run(ctx context.Context, rawText string) (Result, error)
}

// QuestionAnswerer answers a question from a grounding context.
type QuestionAnswerer interface {
	Answer(ctx context.Context, question, qaContext string) (string, error)
}

// Processor coordinates OCR then the text pipeline for stored documents and
// answers questions against their persisted qa context.
type Processor struct {
	docs     repository.DocumentRepository
	chat     repository.ChatRepository
	ocr      DocumentOCR
	pipeline TextPipeline
	answerer QuestionAnswerer
	params   ocr.Params
	logger   *slog.Logger
}

func NewProcessor(
	docs repository.DocumentRepository,
	chat repository.ChatRepository,
	extractor DocumentOCR,
	pipe TextPipeline,
	answerer QuestionAnswerer,
	params ocr.Params,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		docs:     docs,
		chat:     chat,
		ocr:      extractor,
		pipeline: pipe,
		answerer: answerer,
		params:   params.WithDefaults(),
		logger:   logger,
	}
}

// ProcessDocument runs OCR and extraction for a stored document and persists
// each stage. A failure marks the document FAILED with the error message.
func (p *Processor) ProcessDocument(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	start := time.Now()
	doc, err := p.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.docs.UpdateStatus(ctx, id, constants.DocumentStatusRunning); err != nil {
		return nil, err
	}

	ctx = common.WithDocumentID(ctx, id.String())
	if doc.ContentHash != "" {
		ctx = ocr.WithContentHash(ctx, doc.ContentHash)
	}

	// 1) OCR stage → raw text + page count
	res, err := p.ocr.ExtractDocument(ctx, doc.SourcePath, p.params)
	if err != nil {
		p.fail(ctx, id, "ocr", err)
		return nil, err
	}
	if err := p.docs.SaveOCR(ctx, id, repository.OCROutcome{
		RawText:   res.CombinedText,
		PageCount: res.PageCount,
		OCRConfig: p.params.ConfigString(),
	}); err != nil {
		p.fail(ctx, id, "ocr.persist", err)
		return nil, err
	}
	p.logger.Debug("processor.ocr.ok", "document_id", id, "pages", res.PageCount, "engine", res.Engine)

	// 2) text pipeline → enhanced text, fields, qa context
	out, err := p.pipeline.Run(ctx, res.CombinedText)
	if err != nil {
		p.fail(ctx, id, "pipeline", err)
		return nil, err
	}
	if err := p.docs.SaveExtraction(ctx, id, repository.ExtractionOutcome{
		EnhancedText: out.EnhancedText,
		Fields:       out.Fields,
		Provenance:   out.Provenance,
		QAContext:    out.QAContext,
		Truncated:    out.Truncation.Any(),
	}); err != nil {
		p.fail(ctx, id, "pipeline.persist", err)
		return nil, err
	}

	p.logger.Info("processor.document.ok",
		"document_id", id,
		"pages", res.PageCount,
		"truncated", out.Truncation.Any(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return p.docs.GetByID(ctx, id)
}

func (p *Processor) fail(ctx context.Context, id uuid.UUID, stage string, cause error) {
	p.logger.Error("processor.document.failed", "document_id", id, "stage", stage, "error", cause)
	if err := p.docs.MarkFailed(context.WithoutCancel(ctx), id, cause.Error()); err != nil {
		p.logger.Error("processor.mark_failed.failed", "document_id", id, "error", err)
	}
}

// Ask answers question about a processed document and records the turn.
func (p *Processor) Ask(ctx context.Context, id uuid.UUID, question string) (*entity.ChatTurn, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, common.NewAppError(common.CodeInvalidInput, "question is required", common.ErrInvalidInput)
	}
	doc, err := p.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.Processed() {
		return nil, common.NewAppError(common.CodeInvalidInput,
			fmt.Sprintf("document %s is not processed (status %s)", id, doc.Status), common.ErrInvalidInput)
	}

	answer, err := p.answerer.Answer(ctx, question, doc.QAContext)
	if err != nil {
		p.logger.Error("processor.ask.failed", "document_id", id, "error", err)
		return nil, err
	}
	return p.chat.Append(ctx, id, question, answer)
}

// History returns the chat turns of a document, oldest first.
func (p *Processor) History(ctx context.Context, id uuid.UUID) ([]*entity.ChatTurn, error) {
	if _, err := p.docs.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return p.chat.ListByDocument(ctx, id)
}
