package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/formscan/constants"
	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/core/async"
	"github.com/joseph-ayodele/formscan/internal/core/fields"
	"github.com/joseph-ayodele/formscan/internal/core/ocr"
	"github.com/joseph-ayodele/formscan/internal/core/pipeline"
	"github.com/joseph-ayodele/formscan/internal/export"
	"github.com/joseph-ayodele/formscan/internal/ingest"
	"github.com/joseph-ayodele/formscan/internal/repository"
)

type stubOCR struct{ err error }

func (s stubOCR) ExtractDocument(context.Context, string, ocr.Params) (ocr.DocumentResult, error) {
	if s.err != nil {
		return ocr.DocumentResult{}, s.err
	}
	return ocr.DocumentResult{CombinedText: "Narne: Jane Doe", PageCount: 1, Engine: "stub"}, nil
}

type stubPipeline struct{}

func (stubPipeline) Run(_ context.Context, raw string) (pipeline.Result, error) {
	fs := fields.New()
	fs[constants.FieldName] = "Jane Doe"
	fs[constants.FieldEmail] = "jane@example.com"
	return pipeline.Result{
		EnhancedText: "Name: Jane Doe",
		Fields:       fs,
		QAContext:    pipeline.BuildQAContext(fs, "Name: Jane Doe"),
	}, nil
}

type stubAnswerer struct{}

func (stubAnswerer) Answer(_ context.Context, question, _ string) (string, error) {
	return "Jane Doe", nil
}

type recordingQueue struct{ jobs []async.Job }

func (q *recordingQueue) Enqueue(_ context.Context, j async.Job) error {
	q.jobs = append(q.jobs, j)
	return nil
}

func (q *recordingQueue) Shutdown(context.Context) {}

type testEnv struct {
	srv   *Server
	docs  repository.DocumentRepository
	queue *recordingQueue
}

func newEnv(t *testing.T, o stubOCR) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{Driver: "sqlite", DSN: "file::memory:"}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	docs := repository.NewDocumentRepository(db, nil)
	chat := repository.NewChatRepository(db, nil)
	q := &recordingQueue{}
	srv := NewServer(Options{
		Ingestor:  ingest.NewFSIngestor(docs, t.TempDir(), 0, nil),
		Processor: pipeline.NewProcessor(docs, chat, o, stubPipeline{}, stubAnswerer{}, ocr.Params{}, nil),
		Documents: docs,
		Export:    export.NewService(docs, chat, nil),
		Queue:     q,
	}, nil)
	return &testEnv{srv: srv, docs: docs, queue: q}
}

func (e *testEnv) do(t *testing.T, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, filename string, content []byte, extra map[string]string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write(content)
	for k, v := range extra {
		_ = mw.WriteField(k, v)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes(), mw.FormDataContentType()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func (e *testEnv) upload(t *testing.T) string {
	t.Helper()
	body, ct := multipartBody(t, "intake.png", []byte("png-bytes"), nil)
	rec := e.do(t, http.MethodPost, "/api/upload", body, ct)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}
	return decode(t, rec)["document_id"].(string)
}

func TestHealth(t *testing.T) {
	e := newEnv(t, stubOCR{})
	rec := e.do(t, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestUpload_ProcessesInline(t *testing.T) {
	e := newEnv(t, stubOCR{})
	body, ct := multipartBody(t, "intake.png", []byte("png-bytes"), nil)
	rec := e.do(t, http.MethodPost, "/api/upload", body, ct)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	got := decode(t, rec)
	if got["success"] != true || got["enhanced_text"] != "Name: Jane Doe" {
		t.Errorf("body = %v", got)
	}
	data, _ := got["extracted_data"].(map[string]any)
	if data["name"] != "Jane Doe" || len(data) != len(constants.FieldNames()) {
		t.Errorf("extracted_data = %v", data)
	}
	if len(e.queue.jobs) != 0 {
		t.Errorf("inline upload should not enqueue: %v", e.queue.jobs)
	}
}

func TestUpload_Async(t *testing.T) {
	e := newEnv(t, stubOCR{})
	body, ct := multipartBody(t, "scan.pdf", []byte("%PDF-1.4"), map[string]string{"async": "true"})
	rec := e.do(t, http.MethodPost, "/api/upload", body, ct)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if len(e.queue.jobs) != 1 {
		t.Fatalf("jobs = %v", e.queue.jobs)
	}
	if id := decode(t, rec)["document_id"]; id != e.queue.jobs[0].DocumentID.String() {
		t.Errorf("document_id = %v, queued %s", id, e.queue.jobs[0].DocumentID)
	}
}

func TestUpload_Rejects(t *testing.T) {
	e := newEnv(t, stubOCR{})
	rec := e.do(t, http.MethodPost, "/api/upload", nil, "multipart/form-data; boundary=x")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty form status = %d", rec.Code)
	}

	body, ct := multipartBody(t, "notes.docx", []byte("x"), nil)
	rec = e.do(t, http.MethodPost, "/api/upload", body, ct)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad extension status = %d", rec.Code)
	}
}

func TestUpload_ProcessingFailure(t *testing.T) {
	e := newEnv(t, stubOCR{err: common.EngineUnavailable("tesseract missing", nil)})
	body, ct := multipartBody(t, "intake.png", []byte("png-bytes"), nil)
	rec := e.do(t, http.MethodPost, "/api/upload", body, ct)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if msg, _ := decode(t, rec)["error"].(string); !strings.HasPrefix(msg, "Error processing document: ") {
		t.Errorf("error = %q", msg)
	}
}

func TestListAndGetDocuments(t *testing.T) {
	e := newEnv(t, stubOCR{})
	id := e.upload(t)

	got := decode(t, e.do(t, http.MethodGet, "/api/documents?search=jane", nil, ""))
	if got["count"] != float64(1) {
		t.Fatalf("list = %v", got)
	}
	row := got["documents"].([]any)[0].(map[string]any)
	if row["id"] != id || row["name"] != "Jane Doe" || row["file_type"] != "image" {
		t.Errorf("row = %v", row)
	}

	got = decode(t, e.do(t, http.MethodGet, "/api/documents?search=nobody", nil, ""))
	if got["count"] != float64(0) {
		t.Errorf("search miss = %v", got)
	}

	rec := e.do(t, http.MethodGet, "/api/documents/"+id, nil, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"enhanced_text":"Name: Jane Doe"`) {
		t.Errorf("get = %d %s", rec.Code, rec.Body.String())
	}

	if rec := e.do(t, http.MethodGet, "/api/documents/"+uuid.NewString(), nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/documents/not-a-uuid", nil, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d", rec.Code)
	}
}

func TestChat(t *testing.T) {
	e := newEnv(t, stubOCR{})
	id := e.upload(t)

	rec := e.do(t, http.MethodPost, "/api/documents/"+id+"/chat", []byte(`{"question":"  "}`), "application/json")
	if rec.Code != http.StatusBadRequest || decode(t, rec)["error"] != "Question is required" {
		t.Fatalf("empty question = %d %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodPost, "/api/documents/"+id+"/chat", []byte(`{"question":"What is the name?"}`), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("chat = %d %s", rec.Code, rec.Body.String())
	}
	if got := decode(t, rec); got["answer"] != "Jane Doe" || got["question"] != "What is the name?" {
		t.Errorf("chat = %v", got)
	}

	got := decode(t, e.do(t, http.MethodGet, "/api/documents/"+id+"/chat/history", nil, ""))
	msgs := got["messages"].([]any)
	if got["document_id"] != id || len(msgs) != 1 {
		t.Errorf("history = %v", got)
	}
}

func TestChat_UnprocessedDocument(t *testing.T) {
	e := newEnv(t, stubOCR{})
	body, ct := multipartBody(t, "scan.pdf", []byte("%PDF-1.4"), map[string]string{"async": "true"})
	id := decode(t, e.do(t, http.MethodPost, "/api/upload", body, ct))["document_id"].(string)

	rec := e.do(t, http.MethodPost, "/api/documents/"+id+"/chat", []byte(`{"question":"Who?"}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d %s", rec.Code, rec.Body.String())
	}
}

func TestDownloads(t *testing.T) {
	e := newEnv(t, stubOCR{})
	id := e.upload(t)

	cases := map[string]string{
		"json": "application/json",
		"txt":  "text/plain",
		"html": "text/html",
	}
	for format, ct := range cases {
		rec := e.do(t, http.MethodGet, "/api/documents/"+id+"/download/"+format, nil, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", format, rec.Code)
			continue
		}
		if !strings.HasPrefix(rec.Header().Get("Content-Type"), ct) {
			t.Errorf("%s: content type = %s", format, rec.Header().Get("Content-Type"))
		}
		want := `filename="document_` + id + `_report.`
		if !strings.Contains(rec.Header().Get("Content-Disposition"), want) {
			t.Errorf("%s: disposition = %s", format, rec.Header().Get("Content-Disposition"))
		}
	}

	if rec := e.do(t, http.MethodGet, "/api/documents/"+id+"/download/pdf", nil, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown format status = %d", rec.Code)
	}

	rec := e.do(t, http.MethodGet, "/api/export.xlsx", nil, "")
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Errorf("xlsx = %d", rec.Code)
	}
}

func TestHealth_NotReady(t *testing.T) {
	e := newEnv(t, stubOCR{})
	e.srv.opts.Ready = func(context.Context) error { return errors.New("db down") }
	if rec := e.do(t, http.MethodGet, "/health", nil, ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}
