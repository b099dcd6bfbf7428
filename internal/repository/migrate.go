package repository

import (
	"context"

	entschema "entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	"github.com/joseph-ayodele/formscan/internal/common"
)

const textSize = 2147483647

var (
	// DocumentsColumns holds the columns for the "documents" table.
	DocumentsColumns = []*entschema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "filename", Type: field.TypeString},
		{Name: "source_path", Type: field.TypeString, Size: textSize},
		{Name: "file_type", Type: field.TypeString, Size: 16},
		{Name: "content_hash", Type: field.TypeString, Size: 64},
		{Name: "file_size", Type: field.TypeInt64, Default: 0},
		{Name: "status", Type: field.TypeString, Size: 16},
		{Name: "error_message", Type: field.TypeString, Size: textSize, Default: ""},
		{Name: "raw_ocr_text", Type: field.TypeString, Size: textSize, Default: ""},
		{Name: "enhanced_text", Type: field.TypeString, Size: textSize, Default: ""},
		{Name: "fields_json", Type: field.TypeString, Size: textSize, Default: ""},
		{Name: "provenance_json", Type: field.TypeString, Size: textSize, Default: ""},
		{Name: "qa_context", Type: field.TypeString, Size: textSize, Default: ""},
		{Name: "name", Type: field.TypeString, Default: ""},
		{Name: "email", Type: field.TypeString, Default: ""},
		{Name: "phone", Type: field.TypeString, Default: ""},
		{Name: "page_count", Type: field.TypeInt, Default: 0},
		{Name: "ocr_config", Type: field.TypeString, Default: ""},
		{Name: "truncated", Type: field.TypeBool, Default: false},
		{Name: "created_at", Type: field.TypeInt64},
		{Name: "updated_at", Type: field.TypeInt64},
	}
	// DocumentsTable holds the schema information for the "documents" table.
	DocumentsTable = &entschema.Table{
		Name:       "documents",
		Columns:    DocumentsColumns,
		PrimaryKey: []*entschema.Column{DocumentsColumns[0]},
		Indexes: []*entschema.Index{
			{Name: "document_content_hash", Unique: false, Columns: []*entschema.Column{DocumentsColumns[4]}},
			{Name: "document_created_at", Unique: false, Columns: []*entschema.Column{DocumentsColumns[19]}},
		},
	}
	// ChatTurnsColumns holds the columns for the "chat_turns" table.
	ChatTurnsColumns = []*entschema.Column{
		{Name: "id", Type: field.TypeString, Size: 36},
		{Name: "question", Type: field.TypeString, Size: textSize},
		{Name: "answer", Type: field.TypeString, Size: textSize},
		{Name: "created_at", Type: field.TypeInt64},
		{Name: "document_id", Type: field.TypeString, Size: 36},
	}
	// ChatTurnsTable holds the schema information for the "chat_turns" table.
	ChatTurnsTable = &entschema.Table{
		Name:       "chat_turns",
		Columns:    ChatTurnsColumns,
		PrimaryKey: []*entschema.Column{ChatTurnsColumns[0]},
		ForeignKeys: []*entschema.ForeignKey{
			{
				Symbol:     "chat_turns_documents_chat_turns",
				Columns:    []*entschema.Column{ChatTurnsColumns[4]},
				RefColumns: []*entschema.Column{DocumentsColumns[0]},
				OnDelete:   entschema.Cascade,
			},
		},
		Indexes: []*entschema.Index{
			{Name: "chatturn_document_id_created_at", Unique: false, Columns: []*entschema.Column{ChatTurnsColumns[4], ChatTurnsColumns[3]}},
		},
	}
	// Tables holds all the tables in the schema.
	Tables = []*entschema.Table{
		DocumentsTable,
		ChatTurnsTable,
	}
)

func init() {
	ChatTurnsTable.ForeignKeys[0].RefTable = DocumentsTable
}

// Migrate creates or upgrades the schema in place.
func (d *DB) Migrate(ctx context.Context) error {
	m, err := entschema.NewMigrate(d.Driver)
	if err != nil {
		return common.NewAppError(common.CodeDatabase, "init migration", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		d.logger.Error("schema migration failed", "error", err)
		return common.NewAppError(common.CodeDatabase, "migrate schema", err)
	}
	d.logger.Info("schema migration complete", "dialect", d.Dialect())
	return nil
}
