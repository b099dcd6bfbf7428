// Package export renders stored documents as downloadable reports and
// spreadsheets.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/formscan/constants"
	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/entity"
	"github.com/joseph-ayodele/formscan/internal/repository"
)

// Report formats served by DocumentReport.
const (
	FormatJSON     = "json"
	FormatText     = "txt"
	FormatMarkdown = "md"
	FormatHTML     = "html"
)

// Service is a thin façade over the repositories that produces report and XLSX bytes.
type Service struct {
	docs   repository.DocumentRepository
	chat   repository.ChatRepository
	logger *slog.Logger
}

func NewService(docs repository.DocumentRepository, chat repository.ChatRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, chat: chat, logger: logger}
}

// DocumentReport renders one document in the requested format.
func (s *Service) DocumentReport(ctx context.Context, id uuid.UUID, format string) (Report, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return Report{}, err
	}
	switch strings.ToLower(format) {
	case FormatJSON:
		return JSONReport(doc)
	case FormatText, "text":
		return TextReport(doc), nil
	case FormatMarkdown, "markdown", FormatHTML:
		turns, err := s.chat.ListByDocument(ctx, id)
		if err != nil {
			return Report{}, err
		}
		if strings.ToLower(format) == FormatHTML {
			return HTMLReport(doc, turns)
		}
		return MarkdownReport(doc, turns), nil
	default:
		return Report{}, common.NewAppError(common.CodeInvalidInput, fmt.Sprintf("unknown report format %q", format), common.ErrInvalidInput)
	}
}

// ExportDocumentsXLSX returns a workbook with one row per document matching
// the filter and a second sheet holding every chat turn.
func (s *Service) ExportDocumentsXLSX(ctx context.Context, filter repository.ListFilter) ([]byte, error) {
	start := time.Now()

	docs, err := s.docs.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Documents"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	names := constants.FieldNames()
	headers := []string{"Document ID", "Filename", "File Type", "Status"}
	for _, k := range names {
		headers = append(headers, constants.FieldLabels[k])
	}
	headers = append(headers, "Pages", "Created At", "Source Path", "Error")
	if err := writeRow(f, sheet, 1, headers); err != nil {
		return nil, err
	}

	for i, d := range docs {
		fs := fieldsOf(d)
		row := []any{d.ID.String(), d.Filename, FileTypeLabel(d.FileType), d.Status}
		for _, k := range names {
			row = append(row, fs[k])
		}
		row = append(row, d.PageCount, d.CreatedAt.UTC().Format(time.RFC3339), d.SourcePath, d.ErrorMessage)
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return nil, err
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 38) // id
	_ = f.SetColWidth(sheet, "B", "B", 28) // filename
	last, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetColWidth(sheet, "E", last, 20)
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	turns, err := s.writeChatSheet(ctx, f, docs)
	if err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(docs),
		"chat_turns", turns,
		"search", filter.Search,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) writeChatSheet(ctx context.Context, f *excelize.File, docs []*entity.Document) (int, error) {
	const sheet = "Chat"
	if _, err := f.NewSheet(sheet); err != nil {
		return 0, err
	}
	if err := writeRow(f, sheet, 1, []string{"Document ID", "Question", "Answer", "Asked At"}); err != nil {
		return 0, err
	}
	row := 2
	for _, d := range docs {
		turns, err := s.chat.ListByDocument(ctx, d.ID)
		if err != nil {
			return 0, err
		}
		for _, t := range turns {
			if err := writeRow(f, sheet, row, []any{d.ID.String(), t.Question, t.Answer, t.CreatedAt.UTC().Format(time.RFC3339)}); err != nil {
				return 0, err
			}
			row++
		}
	}
	_ = f.SetColWidth(sheet, "A", "A", 38)
	_ = f.SetColWidth(sheet, "B", "C", 60)
	return row - 2, nil
}

func writeRow[T any](f *excelize.File, sheet string, row int, values []T) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return f.SetSheetRow(sheet, cell, &vals)
}
