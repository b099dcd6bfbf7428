package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/joseph-ayodele/formscan/constants"
	"github.com/joseph-ayodele/formscan/internal/common"
	"github.com/joseph-ayodele/formscan/internal/entity"
	"github.com/joseph-ayodele/formscan/internal/repository"
)

// FSIngestor reads documents through AFS and records them in the repository.
// Local files are referenced in place; remote and uploaded content is copied
// into UploadDir first.
type FSIngestor struct {
	docs      repository.DocumentRepository
	fs        afs.Service
	uploadDir string
	maxBytes  int64
	logger    *slog.Logger
}

func NewFSIngestor(docs repository.DocumentRepository, uploadDir string, maxBytes int64, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{docs: docs, fs: afs.New(), uploadDir: uploadDir, maxBytes: maxBytes, logger: logger}
}

func (i *FSIngestor) IngestPath(ctx context.Context, location string) (IngestionResult, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return IngestionResult{}, common.NewAppError(common.CodeInvalidInput, "path is required", common.ErrInvalidInput)
	}

	// relative → absolute OS path → file:// URL, the way AFS expects it
	norm := location
	if url.Scheme(norm, "") == "" && url.IsRelative(norm) {
		abs, err := filepath.Abs(norm)
		if err != nil {
			return IngestionResult{}, fmt.Errorf("abs path: %w", err)
		}
		norm = abs
	}
	local := url.Scheme(norm, file.Scheme) == file.Scheme
	if url.Scheme(norm, "") == "" {
		norm = url.ToFileURL(norm)
	}

	name := path.Base(url.Path(norm))
	if err := checkExt(name); err != nil {
		return IngestionResult{}, err
	}

	data, err := i.fs.DownloadWithURL(ctx, norm)
	if err != nil {
		if local && errors.Is(err, os.ErrNotExist) {
			return IngestionResult{}, common.NotFound("document not found: %s", location)
		}
		if ok, _ := i.fs.Exists(ctx, norm); !ok {
			return IngestionResult{}, common.NotFound("document not found: %s", location)
		}
		i.logger.Error("ingest.download.failed", "location", location, "error", err)
		return IngestionResult{}, fmt.Errorf("download %s: %w", location, err)
	}

	if !local {
		return i.IngestBytes(ctx, name, data)
	}
	return i.record(ctx, name, url.Path(norm), data)
}

func (i *FSIngestor) IngestBytes(ctx context.Context, filename string, data []byte) (IngestionResult, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if err := checkExt(filename); err != nil {
		return IngestionResult{}, err
	}
	if i.maxBytes > 0 && int64(len(data)) > i.maxBytes {
		return IngestionResult{}, common.NewAppError(common.CodeInvalidInput,
			fmt.Sprintf("file is %d bytes; limit is %d", len(data), i.maxBytes), common.ErrInvalidInput)
	}

	hash := ContentHash(data)
	if existing, err := i.docs.GetByHash(ctx, hash); err == nil {
		return resultFor(existing, true), nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return IngestionResult{}, err
	}

	if err := os.MkdirAll(i.uploadDir, 0o755); err != nil {
		return IngestionResult{}, fmt.Errorf("create upload dir: %w", err)
	}
	dst := filepath.Join(i.uploadDir, hash[:16]+"_"+safeName(filename))
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return IngestionResult{}, fmt.Errorf("store upload: %w", err)
	}
	abs, err := filepath.Abs(dst)
	if err != nil {
		abs = dst
	}
	return i.create(ctx, filename, abs, hash, int64(len(data)))
}

func (i *FSIngestor) record(ctx context.Context, name, sourcePath string, data []byte) (IngestionResult, error) {
	hash := ContentHash(data)
	if existing, err := i.docs.GetByHash(ctx, hash); err == nil {
		i.logger.Info("ingest.deduplicated", "path", sourcePath, "document_id", existing.ID)
		return resultFor(existing, true), nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return IngestionResult{}, err
	}
	return i.create(ctx, name, sourcePath, hash, int64(len(data)))
}

func (i *FSIngestor) create(ctx context.Context, name, sourcePath, hash string, size int64) (IngestionResult, error) {
	doc, err := i.docs.Create(ctx, &entity.Document{
		Filename:    name,
		SourcePath:  sourcePath,
		FileType:    constants.MapExtToFormat(filepath.Ext(name)),
		ContentHash: hash,
		FileSize:    size,
	})
	if err != nil {
		return IngestionResult{}, err
	}
	i.logger.Info("ingest.created", "document_id", doc.ID, "path", sourcePath, "bytes", size)
	return resultFor(doc, false), nil
}

func checkExt(name string) error {
	ext := constants.NormalizeExt(filepath.Ext(name))
	if ext == "" || !AllowedExt(ext) {
		return common.NewAppError(common.CodeInvalidInput,
			fmt.Sprintf("unsupported file type %q", ext), common.ErrInvalidInput)
	}
	return nil
}

func resultFor(doc *entity.Document, dedup bool) IngestionResult {
	return IngestionResult{
		DocumentID:   doc.ID,
		Filename:     doc.Filename,
		SourcePath:   doc.SourcePath,
		FileType:     doc.FileType,
		Size:         doc.FileSize,
		HashHex:      doc.ContentHash,
		Deduplicated: dedup,
	}
}
