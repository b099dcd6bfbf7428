package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/joseph-ayodele/formscan/constants"
	"github.com/joseph-ayodele/formscan/internal/core/fields"
	"github.com/joseph-ayodele/formscan/internal/entity"
)

// Report is one downloadable rendering of a document.
type Report struct {
	Filename    string
	ContentType string
	Body        []byte
}

type jsonReport struct {
	DocumentID      string          `json:"document_id"`
	Filename        string          `json:"filename"`
	FileType        string          `json:"file_type"`
	Status          string          `json:"status"`
	PageCount       int             `json:"page_count"`
	ExtractedFields fields.FieldSet `json:"extracted_fields"`
	RawOCRText      string          `json:"raw_ocr_text"`
	EnhancedText    string          `json:"enhanced_text"`
}

// FileTypeLabel is the lowercase file type used in reports and API responses.
func FileTypeLabel(fileType string) string { return strings.ToLower(fileType) }

// JSONReport renders the document as indented JSON.
func JSONReport(doc *entity.Document) (Report, error) {
	body, err := json.MarshalIndent(jsonReport{
		DocumentID:      doc.ID.String(),
		Filename:        doc.Filename,
		FileType:        FileTypeLabel(doc.FileType),
		Status:          doc.Status,
		PageCount:       doc.PageCount,
		ExtractedFields: fieldsOf(doc),
		RawOCRText:      doc.RawOCRText,
		EnhancedText:    doc.EnhancedText,
	}, "", "  ")
	if err != nil {
		return Report{}, err
	}
	return Report{
		Filename:    reportName(doc, "json"),
		ContentType: "application/json",
		Body:        body,
	}, nil
}

// TextReport renders the plain-text extraction report.
func TextReport(doc *entity.Document) Report {
	rule := strings.Repeat("=", 50)
	fs := fieldsOf(doc)

	var b strings.Builder
	b.WriteString("\nDOCUMENT EXTRACTION REPORT\n")
	b.WriteString(rule + "\n\n")
	fmt.Fprintf(&b, "Document ID: %s\n", doc.ID)
	fmt.Fprintf(&b, "File Type: %s\n\n", FileTypeLabel(doc.FileType))
	b.WriteString("EXTRACTED FIELDS:\n")
	b.WriteString(rule + "\n")
	for _, k := range constants.FieldNames() {
		fmt.Fprintf(&b, "%s: %s\n", constants.FieldLabels[k], fs[k])
	}
	b.WriteString("\nRAW OCR TEXT:\n")
	b.WriteString(rule + "\n")
	b.WriteString(doc.RawOCRText + "\n\n")
	b.WriteString("ENHANCED TEXT:\n")
	b.WriteString(rule + "\n")
	b.WriteString(doc.EnhancedText + "\n")

	return Report{
		Filename:    reportName(doc, "txt"),
		ContentType: "text/plain; charset=utf-8",
		Body:        []byte(b.String()),
	}
}

// MarkdownReport renders fields as a table, the texts as code blocks and the
// chat history as a list.
func MarkdownReport(doc *entity.Document, turns []*entity.ChatTurn) Report {
	fs := fieldsOf(doc)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", mdInline(titleOf(doc)))
	fmt.Fprintf(&b, "- Document ID: `%s`\n", doc.ID)
	fmt.Fprintf(&b, "- File type: %s\n", FileTypeLabel(doc.FileType))
	fmt.Fprintf(&b, "- Status: %s\n", doc.Status)
	fmt.Fprintf(&b, "- Pages: %d\n\n", doc.PageCount)

	b.WriteString("## Extracted fields\n\n| Field | Value |\n| --- | --- |\n")
	for _, k := range constants.FieldNames() {
		fmt.Fprintf(&b, "| %s | %s |\n", constants.FieldLabels[k], mdCell(fs[k]))
	}

	b.WriteString("\n## Enhanced text\n\n")
	b.WriteString(codeBlock(doc.EnhancedText))
	b.WriteString("\n## Raw OCR text\n\n")
	b.WriteString(codeBlock(doc.RawOCRText))

	if len(turns) > 0 {
		b.WriteString("\n## Questions\n\n")
		for _, t := range turns {
			fmt.Fprintf(&b, "- **%s**\n  %s\n", mdInline(t.Question), mdInline(t.Answer))
		}
	}
	return Report{
		Filename:    reportName(doc, "md"),
		ContentType: "text/markdown; charset=utf-8",
		Body:        []byte(b.String()),
	}
}

// HTMLReport converts the Markdown report to a standalone HTML page.
func HTMLReport(doc *entity.Document, turns []*entity.ChatTurn) (Report, error) {
	md := MarkdownReport(doc, turns)
	conv := goldmark.New(goldmark.WithExtensions(extension.Table))

	var body bytes.Buffer
	if err := conv.Convert(md.Body, &body); err != nil {
		return Report{}, fmt.Errorf("render markdown: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	page.WriteString(html.EscapeString(titleOf(doc)))
	page.WriteString("</title></head><body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body></html>\n")

	return Report{
		Filename:    reportName(doc, "html"),
		ContentType: "text/html; charset=utf-8",
		Body:        page.Bytes(),
	}, nil
}

func fieldsOf(doc *entity.Document) fields.FieldSet {
	if doc.Fields == nil {
		return fields.New()
	}
	return doc.Fields.Normalize()
}

func reportName(doc *entity.Document, ext string) string {
	return fmt.Sprintf("document_%s_report.%s", doc.ID, ext)
}

func titleOf(doc *entity.Document) string {
	if doc.Fields != nil && doc.Fields[constants.FieldName] != "" {
		return doc.Fields[constants.FieldName]
	}
	if doc.Filename != "" {
		return doc.Filename
	}
	return "Document " + doc.ID.String()
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`,
	"<", "&lt;", ">", "&gt;", "#", `\#`, "|", `\|`,
)

func mdInline(s string) string {
	return mdEscaper.Replace(strings.Join(strings.Fields(s), " "))
}

func mdCell(s string) string {
	if s == "" {
		return " "
	}
	return mdInline(s)
}

// codeBlock fences s with enough tildes to survive fences inside it.
func codeBlock(s string) string {
	fence := "~~~"
	for strings.Contains(s, fence) {
		fence += "~"
	}
	return fence + "\n" + strings.TrimRight(s, "\n") + "\n" + fence + "\n"
}
