package constants

import (
	"mime"
	"strings"
)

// Document formats the OCR and extraction stages distinguish.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
	TEXT  = "TEXT"
)

// FileTypes holds the formats the pipeline knows how to read.
var FileTypes = []string{PDF, IMAGE, TEXT}

// AllowedExtensions holds the default extensions picked up when listing a folder.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"tif":  {},
	"tiff": {},
	"txt":  {},
}

var mimeToExt = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/tiff":      ".tiff",
	"image/webp":      ".webp",
	"image/heic":      ".heic",
	"text/plain":      ".txt",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat returns PDF, IMAGE, TEXT or "" for an extension.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png", "tif", "tiff", "webp", "bmp", "heic", "heif":
		return IMAGE
	case "txt":
		return TEXT
	}
	return ""
}

// MapMimeToFormat returns PDF, IMAGE, TEXT or "" for a MIME type.
func MapMimeToFormat(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case mt == "application/pdf":
		return PDF
	case strings.HasPrefix(mt, "image/"):
		return IMAGE
	case strings.HasPrefix(mt, "text/"):
		return TEXT
	}
	return ""
}

// ExtForMime returns a dotted extension for a MIME type, or "" when unknown.
func ExtForMime(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if ext, ok := mimeToExt[mt]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mt); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// MimeForExt guesses a MIME type from a file extension.
func MimeForExt(ext string) string {
	e := "." + NormalizeExt(ext)
	for mt, known := range mimeToExt {
		if known == e {
			return mt
		}
	}
	if e == ".jpeg" {
		return "image/jpeg"
	}
	if e == ".tif" {
		return "image/tiff"
	}
	return mime.TypeByExtension(e)
}

// IsHEIC reports whether a MIME type is HEIC/HEIF, which tesseract cannot read directly.
func IsHEIC(mimeType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	return mt == "image/heic" || mt == "image/heif"
}
