package constants

import "strings"

// Source formats stored on documents.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

// FileTypes holds the allowed values for a document's file_type column.
var FileTypes = []string{PDF, IMAGE}

// AllowedExtensions holds the file extensions accepted for ingestion (lowercased, no dot).
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"bmp":  {},
	"tif":  {},
	"tiff": {},
	"webp": {},
	"heic": {},
	"heif": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MapExtToFormat returns PDF or IMAGE for supported extensions, "" otherwise.
func MapExtToFormat(ext string) string {
	ext = NormalizeExt(ext)
	if _, ok := AllowedExtensions[ext]; !ok {
		return ""
	}
	if ext == "pdf" {
		return PDF
	}
	return IMAGE
}

func IsHEICExt(ext string) bool {
	switch NormalizeExt(ext) {
	case "heic", "heif", "heics", "heifs":
		return true
	}
	return false
}
