package ingest

import (
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/minio/highwayhash"

	"github.com/joseph-ayodele/formscan/constants"
)

var hashKey = []byte("formscan-content-fingerprint-v1!")

// ContentHash is the 256-bit HighwayHash of data, hex encoded.
func ContentHash(data []byte) string {
	sum := highwayhash.Sum(data, hashKey)
	return hex.EncodeToString(sum[:])
}

// AllowedExt checks if a file extension is in the allowed set.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// safeName keeps letters, digits, dash, underscore and dot.
func safeName(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			out = append(out, r)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}
