// Package ingest turns files on disk, remote AFS URLs and uploaded bytes into
// stored documents ready for processing.
package ingest

import (
	"context"

	"github.com/google/uuid"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	DocumentID   uuid.UUID `json:"document_id"`
	Filename     string    `json:"filename"`
	SourcePath   string    `json:"source_path"`
	FileType     string    `json:"file_type"`
	Size         int64     `json:"size"`
	HashHex      string    `json:"hash"`
	Deduplicated bool      `json:"deduplicated"`
	Err          string    `json:"error,omitempty"`
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// Ingestor is the behavior the service depends on.
type Ingestor interface {
	// IngestPath ingests a local path or an AFS URL (mem://, s3://, gs://...).
	IngestPath(ctx context.Context, location string) (IngestionResult, error)
	// IngestBytes stores uploaded content under the upload dir and ingests it.
	IngestBytes(ctx context.Context, filename string, data []byte) (IngestionResult, error)
	// IngestDirectory ingests all matching files under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}
