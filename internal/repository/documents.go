package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/formscan/constants"
	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/core/fields"
	"github.com/joseph-ayodele/formscan/internal/entity"
)

// OCROutcome is what the OCR stage persists.
type OCROutcome struct {
	RawText   string
	PageCount int
	OCRConfig string
}

// ExtractionOutcome is what the LLM stage persists.
type ExtractionOutcome struct {
	EnhancedText string
	Fields       fields.FieldSet
	Provenance   map[string]fields.Source
	QAContext    string
	Truncated    bool
}

// ListFilter narrows List. Search matches name, email, phone or filename.
type ListFilter struct {
	Search string
	Status string
	Limit  int
	Offset int
}

type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) (*entity.Document, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	GetByHash(ctx context.Context, hash string) (*entity.Document, error)
	List(ctx context.Context, f ListFilter) ([]*entity.Document, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status constants.DocumentStatus) error
	SaveOCR(ctx context.Context, id uuid.UUID, out OCROutcome) error
	SaveExtraction(ctx context.Context, id uuid.UUID, out ExtractionOutcome) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type documentRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewDocumentRepository(db *DB, logger *slog.Logger) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentRepo{db: db, logger: logger}
}

var documentColumns = []string{
	"id", "filename", "source_path", "file_type", "content_hash", "file_size", "status",
	"error_message", "raw_ocr_text", "enhanced_text", "fields_json", "provenance_json",
	"qa_context", "page_count", "ocr_config", "truncated", "created_at", "updated_at",
}

func (r *documentRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect())
}

func (r *documentRepo) Create(ctx context.Context, doc *entity.Document) (*entity.Document, error) {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = doc.CreatedAt
	if doc.Status == "" {
		doc.Status = string(constants.DocumentStatusQueued)
	}
	if doc.Fields == nil {
		doc.Fields = fields.New()
	}
	fj, pj, err := encodeFields(doc.Fields, doc.Provenance)
	if err != nil {
		return nil, err
	}

	q, args := r.builder().Insert("documents").
		Columns(append(documentColumns, "name", "email", "phone")...).
		Values(
			doc.ID.String(), doc.Filename, doc.SourcePath, doc.FileType, doc.ContentHash, doc.FileSize, doc.Status,
			doc.ErrorMessage, doc.RawOCRText, doc.EnhancedText, fj, pj,
			doc.QAContext, doc.PageCount, doc.OCRConfig, doc.Truncated, doc.CreatedAt.UnixNano(), doc.UpdatedAt.UnixNano(),
			doc.Fields.Get(constants.FieldName), doc.Fields.Get(constants.FieldEmail), doc.Fields.Get(constants.FieldPhone),
		).Query()
	if err := r.exec(ctx, q, args); err != nil {
		r.logger.Error("failed to create document", "filename", doc.Filename, "error", err)
		return nil, err
	}
	r.logger.Info("document created", "document_id", doc.ID, "filename", doc.Filename, "file_type", doc.FileType)
	return doc, nil
}

func (r *documentRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	q, args := r.builder().Select(documentColumns...).
		From(entsql.Table("documents")).
		Where(entsql.EQ("id", id.String())).
		Query()
	docs, err := r.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, common.NotFound("document %s not found", id)
	}
	return docs[0], nil
}

func (r *documentRepo) GetByHash(ctx context.Context, hash string) (*entity.Document, error) {
	q, args := r.builder().Select(documentColumns...).
		From(entsql.Table("documents")).
		Where(entsql.EQ("content_hash", hash)).
		OrderBy(entsql.Asc("created_at")).
		Limit(1).
		Query()
	docs, err := r.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, common.NotFound("no document with hash %s", hash)
	}
	return docs[0], nil
}

func (r *documentRepo) List(ctx context.Context, f ListFilter) ([]*entity.Document, error) {
	sel := r.builder().Select(documentColumns...).From(entsql.Table("documents"))

	var preds []*entsql.Predicate
	if s := strings.TrimSpace(f.Search); s != "" {
		preds = append(preds, entsql.Or(
			entsql.ContainsFold("name", s),
			entsql.ContainsFold("email", s),
			entsql.ContainsFold("phone", s),
			entsql.ContainsFold("filename", s),
		))
	}
	if f.Status != "" {
		preds = append(preds, entsql.EQ("status", f.Status))
	}
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	sel.OrderBy(entsql.Desc("created_at"), entsql.Desc("id"))
	if f.Limit > 0 {
		sel.Limit(f.Limit)
	}
	if f.Offset > 0 {
		sel.Offset(f.Offset)
	}

	q, args := sel.Query()
	return r.query(ctx, q, args)
}

func (r *documentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status constants.DocumentStatus) error {
	q, args := r.builder().Update("documents").
		Set("status", string(status)).
		Set("updated_at", time.Now().UTC().UnixNano()).
		Where(entsql.EQ("id", id.String())).
		Query()
	return r.execOne(ctx, id, q, args)
}

func (r *documentRepo) SaveOCR(ctx context.Context, id uuid.UUID, out OCROutcome) error {
	q, args := r.builder().Update("documents").
		Set("raw_ocr_text", out.RawText).
		Set("page_count", out.PageCount).
		Set("ocr_config", out.OCRConfig).
		Set("status", string(constants.DocumentStatusOCROK)).
		Set("error_message", "").
		Set("updated_at", time.Now().UTC().UnixNano()).
		Where(entsql.EQ("id", id.String())).
		Query()
	if err := r.execOne(ctx, id, q, args); err != nil {
		r.logger.Error("failed to save ocr outcome", "document_id", id, "error", err)
		return err
	}
	r.logger.Info("document ocr saved", "document_id", id, "pages", out.PageCount, "chars", len(out.RawText))
	return nil
}

func (r *documentRepo) SaveExtraction(ctx context.Context, id uuid.UUID, out ExtractionOutcome) error {
	fj, pj, err := encodeFields(out.Fields, out.Provenance)
	if err != nil {
		return err
	}
	q, args := r.builder().Update("documents").
		Set("enhanced_text", out.EnhancedText).
		Set("fields_json", fj).
		Set("provenance_json", pj).
		Set("qa_context", out.QAContext).
		Set("truncated", out.Truncated).
		Set("name", out.Fields.Get(constants.FieldName)).
		Set("email", out.Fields.Get(constants.FieldEmail)).
		Set("phone", out.Fields.Get(constants.FieldPhone)).
		Set("status", string(constants.DocumentStatusLLMOK)).
		Set("error_message", "").
		Set("updated_at", time.Now().UTC().UnixNano()).
		Where(entsql.EQ("id", id.String())).
		Query()
	if err := r.execOne(ctx, id, q, args); err != nil {
		r.logger.Error("failed to save extraction", "document_id", id, "error", err)
		return err
	}
	r.logger.Info("document extraction saved", "document_id", id)
	return nil
}

func (r *documentRepo) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	q, args := r.builder().Update("documents").
		Set("status", string(constants.DocumentStatusFailed)).
		Set("error_message", message).
		Set("updated_at", time.Now().UTC().UnixNano()).
		Where(entsql.EQ("id", id.String())).
		Query()
	if err := r.execOne(ctx, id, q, args); err != nil {
		r.logger.Error("failed to mark document failed", "document_id", id, "error", err)
		return err
	}
	r.logger.Warn("document failed", "document_id", id, "error", message)
	return nil
}

func (r *documentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	q, args := r.builder().Delete("chat_turns").Where(entsql.EQ("document_id", id.String())).Query()
	if err := r.exec(ctx, q, args); err != nil {
		return err
	}
	q, args = r.builder().Delete("documents").Where(entsql.EQ("id", id.String())).Query()
	return r.execOne(ctx, id, q, args)
}

func (r *documentRepo) exec(ctx context.Context, q string, args []any) error {
	var res sql.Result
	if err := r.db.Driver.Exec(ctx, q, args, &res); err != nil {
		return common.NewAppError(common.CodeDatabase, "exec", joinDB(err))
	}
	return nil
}

func (r *documentRepo) execOne(ctx context.Context, id uuid.UUID, q string, args []any) error {
	var res sql.Result
	if err := r.db.Driver.Exec(ctx, q, args, &res); err != nil {
		return common.NewAppError(common.CodeDatabase, "exec", joinDB(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NotFound("document %s not found", id)
	}
	return nil
}

func (r *documentRepo) query(ctx context.Context, q string, args []any) ([]*entity.Document, error) {
	rows := &entsql.Rows{}
	if err := r.db.Driver.Query(ctx, q, args, rows); err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "query documents", joinDB(err))
	}
	defer rows.Close()

	var out []*entity.Document
	for rows.Next() {
		var (
			d                   entity.Document
			id, fj, pj          string
			createdAt, updateAt int64
		)
		if err := rows.Scan(
			&id, &d.Filename, &d.SourcePath, &d.FileType, &d.ContentHash, &d.FileSize, &d.Status,
			&d.ErrorMessage, &d.RawOCRText, &d.EnhancedText, &fj, &pj,
			&d.QAContext, &d.PageCount, &d.OCRConfig, &d.Truncated, &createdAt, &updateAt,
		); err != nil {
			return nil, common.NewAppError(common.CodeDatabase, "scan document", joinDB(err))
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, common.NewAppError(common.CodeDatabase, "bad document id "+id, err)
		}
		d.ID = parsed
		d.Fields, d.Provenance = decodeFields(fj, pj)
		d.CreatedAt = time.Unix(0, createdAt).UTC()
		d.UpdatedAt = time.Unix(0, updateAt).UTC()
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError(common.CodeDatabase, "iterate documents", joinDB(err))
	}
	return out, nil
}

func encodeFields(fs fields.FieldSet, prov map[string]fields.Source) (string, string, error) {
	fj, err := json.Marshal(fs)
	if err != nil {
		return "", "", common.NewAppError(common.CodeDatabase, "encode fields", err)
	}
	pj := ""
	if len(prov) > 0 {
		b, err := json.Marshal(prov)
		if err != nil {
			return "", "", common.NewAppError(common.CodeDatabase, "encode provenance", err)
		}
		pj = string(b)
	}
	return string(fj), pj, nil
}

func decodeFields(fj, pj string) (fields.FieldSet, map[string]fields.Source) {
	fs := fields.New()
	if fj != "" {
		var m map[string]string
		if err := json.Unmarshal([]byte(fj), &m); err == nil {
			for k, v := range m {
				fs[k] = v
			}
		}
	}
	var prov map[string]fields.Source
	if pj != "" {
		_ = json.Unmarshal([]byte(pj), &prov)
	}
	return fs, prov
}
