package constants

// DocumentStatus is the canonical processing status for rows in documents.
type DocumentStatus string

// Stable values (store these exact strings in DB).
const (
	DocumentStatusQueued  DocumentStatus = "QUEUED"  // accepted, waiting for a worker
	DocumentStatusRunning DocumentStatus = "RUNNING" // OCR in progress
	DocumentStatusOCROK   DocumentStatus = "OCR_OK"  // raw text stored
	DocumentStatusLLMOK   DocumentStatus = "LLM_OK"  // enhanced text, fields and qa context stored
	DocumentStatusFailed  DocumentStatus = "FAILED"  // terminal failure, see error_message
)

// Terminal reports whether no further processing will happen for the status.
func (s DocumentStatus) Terminal() bool {
	return s == DocumentStatusLLMOK || s == DocumentStatusFailed
}
