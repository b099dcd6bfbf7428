package server

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/core/ocr"
	"github.com/joseph-ayodele/formscan/internal/core/pipeline"
	"github.com/joseph-ayodele/formscan/internal/export"
	"github.com/joseph-ayodele/formscan/internal/ingest"
	"github.com/joseph-ayodele/formscan/internal/repository"
)

// Deps are the collaborators DocumentServer calls into.
type Deps struct {
	OCR       pipeline.DocumentOCR
	Pipeline  pipeline.TextPipeline
	Answerer  pipeline.QuestionAnswerer
	Processor *pipeline.Processor
	Documents repository.DocumentRepository
	Ingest    *ingest.Service
	Export    *export.Service
	Params    ocr.Params
}

// DocumentServer implements formscan.v1.DocumentService.
type DocumentServer struct {
	deps   Deps
	logger *slog.Logger
}

func NewDocumentServer(deps Deps, logger *slog.Logger) *DocumentServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentServer{deps: deps, logger: logger}
}

// ExtractDocument runs OCR on {path, lang?, psm?, oem?, extra?}.
func (s *DocumentServer) ExtractDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path := strings.TrimSpace(stringField(req, "path"))
	v := common.NewValidator().
		Field("path", path, common.Required).
		Field("lang", stringField(req, "lang"), common.MinLen(3), common.MaxLen(64))
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	p := s.deps.Params
	if v := stringField(req, "lang"); v != "" {
		p.Lang = v
	}
	if _, ok := req.GetFields()["psm"]; ok {
		p.PSM = ocr.Mode(numberField(req, "psm"))
	}
	if _, ok := req.GetFields()["oem"]; ok {
		p.OEM = ocr.Mode(numberField(req, "oem"))
	}
	if v := stringField(req, "extra"); v != "" {
		p.Extra = v
	}

	res, err := s.deps.OCR.ExtractDocument(ctx, path, p)
	if err != nil {
		return nil, err
	}
	return toStruct(res)
}

// RunPipeline normalizes and extracts fields from {raw_text}.
func (s *DocumentServer) RunPipeline(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	raw := stringField(req, "raw_text")
	if err := common.ValidateAndReturnError(common.NewValidator().Field("raw_text", raw, common.Required)); err != nil {
		return nil, err
	}
	res, err := s.deps.Pipeline.Run(ctx, raw)
	if err != nil {
		return nil, err
	}
	return toStruct(res)
}

// Answer takes {question, context} for an ad-hoc context or
// {question, document_id} to answer and record against a stored document.
func (s *DocumentServer) Answer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	question := strings.TrimSpace(stringField(req, "question"))
	v := common.NewValidator().Field("question", question, common.Required, common.MaxLen(maxQuestionChars))
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}

	if raw := stringField(req, "document_id"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return nil, err
		}
		turn, err := s.deps.Processor.Ask(ctx, id, question)
		if err != nil {
			return nil, err
		}
		return toStruct(turn)
	}

	answer, err := s.deps.Answerer.Answer(ctx, question, stringField(req, "context"))
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"question": question, "answer": answer})
}

// GetDocument returns the stored record for {document_id}.
func (s *DocumentServer) GetDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := parseID(stringField(req, "document_id"))
	if err != nil {
		return nil, err
	}
	doc, err := s.deps.Documents.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toStruct(doc)
}

// ProcessDocument runs OCR and extraction synchronously for {document_id}.
func (s *DocumentServer) ProcessDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := parseID(stringField(req, "document_id"))
	if err != nil {
		return nil, err
	}
	doc, err := s.deps.Processor.ProcessDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	return toStruct(doc)
}

const maxQuestionChars = 2000

func parseID(raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	v := common.NewValidator().Field("document_id", raw, common.Required, common.UUID)
	if err := common.ValidateAndReturnError(v); err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(raw), nil
}
