// Package api is the HTTP surface: upload, document listing, chat and reports.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/core/async"
	"github.com/joseph-ayodele/formscan/internal/entity"
	"github.com/joseph-ayodele/formscan/internal/export"
	"github.com/joseph-ayodele/formscan/internal/ingest"
	"github.com/joseph-ayodele/formscan/internal/repository"
)

// DocumentProcessor runs the pipeline for a stored document and answers
// questions about it.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	Ask(ctx context.Context, id uuid.UUID, question string) (*entity.ChatTurn, error)
	History(ctx context.Context, id uuid.UUID) ([]*entity.ChatTurn, error)
}

// Options wires the server's collaborators. Queue may be nil, in which case
// uploads are always processed inline.
type Options struct {
	Ingestor       ingest.Ingestor
	Processor      DocumentProcessor
	Documents      repository.DocumentRepository
	Export         *export.Service
	Queue          async.Queue
	MaxUploadBytes int64
	Ready          func(ctx context.Context) error
}

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	opts   Options
	log    *slog.Logger
}

func NewServer(opts Options, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 25 << 20
	}
	s := &Server{opts: opts, log: log}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Post("/documents/{id}/process", s.handleProcess)
		r.Post("/documents/{id}/chat", s.handleChat)
		r.Get("/documents/{id}/chat/history", s.handleChatHistory)
		r.Get("/documents/{id}/download/{format}", s.handleDownload)
		r.Get("/export.xlsx", s.handleExportXLSX)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		if err := s.opts.Ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// writeError maps the error taxonomy onto an HTTP status.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := common.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("api.request.failed", "path", r.URL.Path, "req_id", middleware.GetReqID(r.Context()), "error", err)
	}
	jsonError(w, err.Error(), code)
}

func documentID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, common.NewAppError(common.CodeInvalidInput, "invalid document id", common.ErrInvalidInput)
	}
	return id, nil
}
