// Package preflight picks the OCR preprocessing mode for the first pass from
// what is known about the upload before any recognition runs.
package preflight

import (
	"mime"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/labqc-mcp-server/internal/domain"
)

// MinPDFTextRunes is the shortest trimmed text layer that counts as present.
const MinPDFTextRunes = 20

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".bmp", ".tiff", ".tif"}

var imageMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

// ChooseMode returns the first-pass OCR mode. Raster images always get the
// adaptive threshold; so does a PDF whose extracted text layer is nearly
// empty. pdfDirectText is nil when no text layer extraction was attempted.
// The file bytes themselves are not inspected.
func ChooseMode(_ []byte, filename, contentType string, pdfDirectText *string) domain.PreflightDecision {
	name := strings.ToLower(filename)
	mimeType := mediaType(contentType)

	if imageMIMETypes[mimeType] || hasImageExtension(name) {
		return domain.PreflightDecision{AdaptiveThreshold: true, Reason: domain.IMAGE_LIKE_INPUT}
	}

	isPDF := mimeType == "application/pdf" || strings.HasSuffix(name, ".pdf")
	if isPDF && pdfDirectText != nil {
		if utf8.RuneCountInString(strings.TrimSpace(*pdfDirectText)) < MinPDFTextRunes {
			return domain.PreflightDecision{AdaptiveThreshold: true, Reason: domain.PDF_EMPTY_TEXT_LAYER}
		}
	}

	return domain.PreflightDecision{AdaptiveThreshold: false, Reason: domain.PRE_FLIGHT_DEFAULT}
}

// IsPDF reports whether the upload should go through text layer extraction.
func IsPDF(filename, contentType string) bool {
	return mediaType(contentType) == "application/pdf" ||
		strings.EqualFold(path.Ext(filename), ".pdf")
}

func hasImageExtension(name string) bool {
	for _, ext := range imageExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// mediaType drops parameters such as "; charset=binary". A header mime
// cannot parse at all is cut at the first semicolon.
func mediaType(contentType string) string {
	if strings.TrimSpace(contentType) == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil && mt == "" {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
