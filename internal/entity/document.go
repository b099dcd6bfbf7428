package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/formscan/internal/core/fields"
)

// Document is an uploaded form and everything extracted from it.
type Document struct {
	ID           uuid.UUID                `json:"id"`
	Filename     string                   `json:"filename"`
	SourcePath   string                   `json:"source_path"`
	FileType     string                   `json:"file_type"` // constants.PDF | constants.IMAGE
	ContentHash  string                   `json:"content_hash"`
	FileSize     int64                    `json:"file_size"`
	Status       string                   `json:"status"`
	ErrorMessage string                   `json:"error_message,omitempty"`
	RawOCRText   string                   `json:"raw_ocr_text"`
	EnhancedText string                   `json:"enhanced_text"`
	Fields       fields.FieldSet          `json:"extracted_fields"`
	Provenance   map[string]fields.Source `json:"provenance,omitempty"`
	QAContext    string                   `json:"qa_context,omitempty"`
	PageCount    int                      `json:"page_count"`
	OCRConfig    string                   `json:"ocr_config,omitempty"`
	Truncated    bool                     `json:"truncated"`
	CreatedAt    time.Time                `json:"created_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
}

// Processed reports whether the document has extracted fields ready for questions.
func (d *Document) Processed() bool {
	return d.QAContext != ""
}

// ChatTurn is one question and its answer about a document.
type ChatTurn struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	CreatedAt  time.Time `json:"created_at"`
}
