package server

import (
	"context"
	"encoding/base64"
	"net"
	"strings"
	"testing"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/formscan/constants"
	"github.com/joseph-ayodele/formscan/internal/core/fields"
	"github.com/joseph-ayodele/formscan/internal/core/ocr"
	"github.com/joseph-ayodele/formscan/internal/core/pipeline"
	"github.com/joseph-ayodele/formscan/internal/entity"
	"github.com/joseph-ayodele/formscan/internal/export"
	"github.com/joseph-ayodele/formscan/internal/repository"
)

type fakeOCR struct{ text string }

func (f fakeOCR) ExtractDocument(_ context.Context, path string, p ocr.Params) (ocr.DocumentResult, error) {
	return ocr.DocumentResult{
		Pages:        []ocr.PageResult{{Page: 1, Text: f.text, ConfigUsed: p.ConfigString()}},
		CombinedText: f.text,
		PageCount:    1,
		Engine:       "fake",
	}, nil
}

type fakePipeline struct{}

func (fakePipeline) Run(_ context.Context, raw string) (pipeline.Result, error) {
	fs := fields.New()
	fs[constants.FieldName] = "Jane Doe"
	return pipeline.Result{
		EnhancedText: strings.TrimSpace(raw),
		Fields:       fs,
		QAContext:    pipeline.BuildQAContext(fs, raw),
	}, nil
}

type fakeAnswerer struct{}

func (fakeAnswerer) Answer(_ context.Context, question, qaContext string) (string, error) {
	if strings.Contains(qaContext, "Jane Doe") {
		return "Jane Doe", nil
	}
	return "Not found in context.", nil
}

type harness struct {
	client grpc.ClientConnInterface
	docs   repository.DocumentRepository
}

func newHarness(t *testing.T) *harness {
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

	proc := pipeline.NewProcessor(docs, chat, fakeOCR{text: "Name: Jane Doe"}, fakePipeline{}, fakeAnswerer{}, ocr.Params{}, nil)
	svc := NewDocumentServer(Deps{
		OCR:       fakeOCR{text: "Name: Jane Doe"},
		Pipeline:  fakePipeline{},
		Answerer:  fakeAnswerer{},
		Processor: proc,
		Documents: docs,
		Export:    export.NewService(docs, chat, nil),
		Params:    ocr.Params{}.WithDefaults(),
	}, nil)

	gs, _ := NewGRPCServer(svc, nil)
	lis := bufconn.Listen(1 << 20)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &harness{client: conn, docs: docs}
}

func (h *harness) call(t *testing.T, method string, req map[string]any) (*structpb.Struct, error) {
	t.Helper()
	in, err := structpb.NewStruct(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	out := new(structpb.Struct)
	err = h.client.Invoke(context.Background(), "/"+ServiceName+"/"+method, in, out)
	return out, err
}

func (h *harness) seed(t *testing.T) *entity.Document {
	t.Helper()
	doc, err := h.docs.Create(context.Background(), &entity.Document{
		Filename:    "intake.png",
		SourcePath:  "/tmp/intake.png",
		FileType:    constants.IMAGE,
		ContentHash: uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return doc
}

func TestExtractDocument(t *testing.T) {
	h := newHarness(t)
	out, err := h.call(t, "ExtractDocument", map[string]any{"path": "/tmp/a.png", "psm": 4})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got := out.GetFields()["combined_text"].GetStringValue(); got != "Name: Jane Doe" {
		t.Errorf("combined_text = %q", got)
	}
	pages := out.GetFields()["pages"].GetListValue().GetValues()
	if len(pages) != 1 || !strings.Contains(pages[0].GetStructValue().GetFields()["config_used"].GetStringValue(), "--psm 4") {
		t.Errorf("pages = %v", pages)
	}
}

func TestExtractDocument_RequiresPath(t *testing.T) {
	h := newHarness(t)
	_, err := h.call(t, "ExtractDocument", map[string]any{})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestExtractDocument_ExplicitModeZero(t *testing.T) {
	h := newHarness(t)
	out, err := h.call(t, "ExtractDocument", map[string]any{"path": "/tmp/a.png", "psm": 0, "oem": 0})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	pages := out.GetFields()["pages"].GetListValue().GetValues()
	if got := pages[0].GetStructValue().GetFields()["config_used"].GetStringValue(); got != "--psm 0 --oem 0" {
		t.Errorf("config_used = %q", got)
	}
}

func TestExtractDocument_RejectsShortLang(t *testing.T) {
	h := newHarness(t)
	_, err := h.call(t, "ExtractDocument", map[string]any{"path": "/tmp/a.png", "lang": "en"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v, want InvalidArgument", status.Code(err))
	}
	if !strings.Contains(status.Convert(err).Message(), "at least 3 characters") {
		t.Errorf("message = %q", status.Convert(err).Message())
	}
}

func TestProcessThenAnswer(t *testing.T) {
	h := newHarness(t)
	doc := h.seed(t)

	_, err := h.call(t, "Answer", map[string]any{"document_id": doc.ID.String(), "question": "Who?"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("answer before processing: code = %v", status.Code(err))
	}

	out, err := h.call(t, "ProcessDocument", map[string]any{"document_id": doc.ID.String()})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := out.GetFields()["status"].GetStringValue(); got != string(constants.DocumentStatusLLMOK) {
		t.Errorf("status = %q", got)
	}

	out, err = h.call(t, "Answer", map[string]any{"document_id": doc.ID.String(), "question": "Who?"})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if got := out.GetFields()["answer"].GetStringValue(); got != "Jane Doe" {
		t.Errorf("answer = %q", got)
	}

	got, err := h.call(t, "GetDocument", map[string]any{"document_id": doc.ID.String()})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	ef := got.GetFields()["extracted_fields"].GetStructValue().GetFields()
	if ef["name"].GetStringValue() != "Jane Doe" {
		t.Errorf("extracted_fields = %v", ef)
	}
}

func TestAnswer_AdHocContext(t *testing.T) {
	h := newHarness(t)
	out, err := h.call(t, "Answer", map[string]any{"question": "Who?", "context": "nothing here"})
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if got := out.GetFields()["answer"].GetStringValue(); got != "Not found in context." {
		t.Errorf("answer = %q", got)
	}
}

func TestGetDocument_Errors(t *testing.T) {
	h := newHarness(t)
	if _, err := h.call(t, "GetDocument", map[string]any{"document_id": "nope"}); status.Code(err) != codes.InvalidArgument {
		t.Errorf("bad id: code = %v", status.Code(err))
	}
	if _, err := h.call(t, "GetDocument", map[string]any{"document_id": uuid.NewString()}); status.Code(err) != codes.NotFound {
		t.Errorf("missing: code = %v", status.Code(err))
	}
}

func TestExportDocuments(t *testing.T) {
	h := newHarness(t)
	doc := h.seed(t)

	out, err := h.call(t, "ExportDocuments", map[string]any{"document_id": doc.ID.String(), "format": "txt"})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	body, err := base64.StdEncoding.DecodeString(out.GetFields()["content_base64"].GetStringValue())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(string(body), "DOCUMENT EXTRACTION REPORT") {
		t.Errorf("txt report = %q", body)
	}

	out, err = h.call(t, "ExportDocuments", map[string]any{})
	if err != nil {
		t.Fatalf("xlsx: %v", err)
	}
	if !strings.HasSuffix(out.GetFields()["filename"].GetStringValue(), ".xlsx") {
		t.Errorf("filename = %v", out.GetFields()["filename"])
	}
}

func TestIngestPath_NotConfigured(t *testing.T) {
	h := newHarness(t)
	if _, err := h.call(t, "IngestPath", map[string]any{"path": "/tmp/x.pdf"}); status.Code(err) != codes.Internal {
		t.Errorf("code = %v, want Internal", status.Code(err))
	}
}

func TestExportDocuments_RejectsUnknownFormat(t *testing.T) {
	h := newHarness(t)
	doc := h.seed(t)
	_, err := h.call(t, "ExportDocuments", map[string]any{"document_id": doc.ID.String(), "format": "pdf"})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v, want InvalidArgument", status.Code(err))
	}
	if !strings.Contains(status.Convert(err).Message(), "must be one of") {
		t.Errorf("message = %q", status.Convert(err).Message())
	}
}
