package ocr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

type ctxKey string

const ctxKeyContentHash ctxKey = "ocr.content_hash_hex"

// WithContentHash stores the document content hash so converted artifacts can be cached.
func WithContentHash(ctx context.Context, hex string) context.Context {
	return context.WithValue(ctx, ctxKeyContentHash, hex)
}

func contentHashFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyContentHash).(string)
	return v
}

// convertHEICtoPNG converts a HEIC/HEIF page to PNG with the configured converter
// ("heif-convert" | "magick" | "sips"). With cacheDir and hashHex set the PNG is
// persisted at {cacheDir}/{hashHex}.png and reused on later calls; cleanup is nil
// in that case. Otherwise a temp dir is used and cleanup removes it.
func convertHEICtoPNG(
	ctx context.Context,
	r Runner,
	logger *slog.Logger,
	converter string,
	in string,
	cacheDir string,
	hashHex string,
) (string, func(), error) {
	var cached string
	if cacheDir != "" && hashHex != "" {
		cached = filepath.Join(cacheDir, hashHex+".png")
		if st, err := os.Stat(cached); err == nil && !st.IsDir() {
			logger.Debug("ocr.heic.cache_hit", "cache", cached)
			return cached, nil, nil
		}
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return "", nil, err
		}
	}

	tmpDir, err := os.MkdirTemp("", "formscan-heic-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	out := filepath.Join(tmpDir, "page.png")

	var args []string
	switch converter {
	case "heif-convert", "magick":
		args = []string{in, out}
	case "sips":
		args = []string{"-s", "format", "png", in, "--out", out}
	default:
		cleanup()
		return "", nil, fmt.Errorf("HEIC not supported: set HEIC_CONVERTER to one of: heif-convert | magick | sips")
	}
	if _, errb, err := r.Run(ctx, converter, logger, args...); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("%s failed: %w (%s)", converter, err, truncate(string(errb), 512))
	}
	if _, err := os.Stat(out); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("HEIC conversion produced no output: %w", err)
	}

	if cached == "" {
		return out, cleanup, nil
	}
	defer cleanup()
	if err := os.Rename(out, cached); err != nil {
		// another worker may have written it first
		if st, statErr := os.Stat(cached); statErr == nil && !st.IsDir() {
			return cached, nil, nil
		}
		if err := copyFile(out, cached); err != nil {
			return "", nil, err
		}
	}
	logger.Debug("ocr.heic.cached", "cache", cached)
	return cached, nil, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
