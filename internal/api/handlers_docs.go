package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/joseph-ayodele/formscan/constants"
	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/entity"
	"github.com/joseph-ayodele/formscan/internal/repository"
)

// documentSummary is one row of the document listing.
type documentSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	DOB      string `json:"dob"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	City     string `json:"city"`
	State    string `json:"state"`
	Gender   string `json:"gender"`
	FileType string `json:"file_type"`
	Status   string `json:"status"`
}

func summarize(d *entity.Document) documentSummary {
	name := d.Fields.Get(constants.FieldName)
	if name == "" {
		name = "Unnamed"
	}
	return documentSummary{
		ID:       d.ID.String(),
		Name:     name,
		DOB:      d.Fields.Get(constants.FieldDOB),
		Email:    d.Fields.Get(constants.FieldEmail),
		Phone:    d.Fields.Get(constants.FieldPhone),
		City:     d.Fields.Get(constants.FieldCity),
		State:    d.Fields.Get(constants.FieldState),
		Gender:   d.Fields.Get(constants.FieldGender),
		FileType: strings.ToLower(d.FileType),
		Status:   d.Status,
	}
}

func listFilter(r *http.Request) repository.ListFilter {
	q := r.URL.Query()
	f := repository.ListFilter{
		Search: strings.TrimSpace(q.Get("search")),
		Status: strings.TrimSpace(q.Get("status")),
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		f.Limit = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n > 0 {
		f.Offset = n
	}
	return f
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.opts.Documents.List(r.Context(), listFilter(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]documentSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, summarize(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "documents": out})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := s.opts.Documents.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleProcess re-runs OCR and extraction inline.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := s.opts.Processor.ProcessDocument(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

const maxQuestionChars = 2000

type chatRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		jsonError(w, "Question is required", http.StatusBadRequest)
		return
	}
	if v := common.NewValidator().Field("question", req.Question, common.MaxLen(maxQuestionChars)); v.HasErrors() {
		s.writeError(w, r, v.Error())
		return
	}

	turn, err := s.opts.Processor.Ask(r.Context(), id, req.Question)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"question":   turn.Question,
		"answer":     turn.Answer,
		"created_at": turn.CreatedAt,
	})
}

type chatMessage struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	turns, err := s.opts.Processor.History(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	msgs := make([]chatMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, chatMessage{
			Question:  t.Question,
			Answer:    t.Answer,
			CreatedAt: t.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"document_id": id.String(), "messages": msgs})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id, err := documentID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rep, err := s.opts.Export.DocumentReport(r.Context(), id, chi.URLParam(r, "format"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", rep.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+rep.Filename+`"`)
	_, _ = w.Write(rep.Body)
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	data, err := s.opts.Export.ExportDocumentsXLSX(r.Context(), listFilter(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="formscan_documents.xlsx"`)
	_, _ = w.Write(data)
}
