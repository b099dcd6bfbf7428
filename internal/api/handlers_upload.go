package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/core/async"
	"github.com/joseph-ayodele/formscan/internal/ingest"
)

// handleUpload stores a multipart "file" and processes it. With async=true
// and a queue configured the document is queued and 202 is returned.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !ingest.AllowedExt(filepath.Ext(filename)) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.opts.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.opts.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.opts.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	ctx := r.Context()
	res, err := s.opts.Ingestor.IngestBytes(ctx, filename, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	force := r.FormValue("force") == "true"

	if r.FormValue("async") == "true" && s.opts.Queue != nil {
		if res.Deduplicated && !force {
			writeJSON(w, http.StatusOK, map[string]any{
				"success":     true,
				"document_id": res.DocumentID,
				"message":     "Document already uploaded",
			})
			return
		}
		if err := s.opts.Queue.Enqueue(ctx, async.Job{DocumentID: res.DocumentID, Force: force, SubmittedAt: time.Now()}); err != nil {
			if errors.Is(err, async.ErrQueueClosed) {
				jsonError(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"success":     true,
			"document_id": res.DocumentID,
			"message":     "Document queued for processing",
		})
		return
	}

	doc, err := s.opts.Documents.GetByID(ctx, res.DocumentID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !doc.Processed() || force {
		doc, err = s.opts.Processor.ProcessDocument(ctx, res.DocumentID)
		if err != nil {
			code := common.HTTPStatus(err)
			if code == http.StatusBadRequest {
				code = http.StatusUnprocessableEntity
			}
			s.log.Error("api.upload.process_failed", "document_id", res.DocumentID, "error", err)
			jsonError(w, "Error processing document: "+err.Error(), code)
			return
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success":        true,
		"document_id":    doc.ID,
		"message":        "Document processed successfully",
		"extracted_data": doc.Fields,
		"enhanced_text":  doc.EnhancedText,
	})
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
