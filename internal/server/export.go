package server

import (
	"context"
	"encoding/base64"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/repository"
)

// ExportDocuments returns {filename, content_type, content_base64}. With
// document_id and format it renders one report; otherwise an XLSX of all
// documents matching {search?, status?}.
func (s *DocumentServer) ExportDocuments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.deps.Export == nil {
		return nil, common.InternalError("export is not configured")
	}

	if raw := stringField(req, "document_id"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return nil, err
		}
		format := strings.ToLower(strings.TrimSpace(stringField(req, "format")))
		if format == "" {
			format = "json"
		}
		v := common.NewValidator().Field("format", format, common.OneOf("json", "txt", "text", "md", "markdown", "html"))
		if err := common.ValidateAndReturnError(v); err != nil {
			return nil, err
		}
		r, err := s.deps.Export.DocumentReport(ctx, id, format)
		if err != nil {
			return nil, err
		}
		return toStruct(map[string]any{
			"filename":       r.Filename,
			"content_type":   r.ContentType,
			"content_base64": base64.StdEncoding.EncodeToString(r.Body),
		})
	}

	data, err := s.deps.Export.ExportDocumentsXLSX(ctx, repository.ListFilter{
		Search: stringField(req, "search"),
		Status: stringField(req, "status"),
	})
	if err != nil {
		s.logger.Error("export failed", "error", err)
		return nil, err
	}
	return toStruct(map[string]any{
		"filename":       "formscan_documents.xlsx",
		"content_type":   "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"content_base64": base64.StdEncoding.EncodeToString(data),
	})
}
