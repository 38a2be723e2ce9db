// Package pdftext reads the embedded text layer of a PDF upload so preflight
// can tell scanned documents from born-digital ones.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrEmptyDocument is returned for zero-length input.
var ErrEmptyDocument = errors.New("empty pdf document")

// Extract returns the plain text of every page joined by newlines. A scanned
// PDF yields an empty string and no error.
func Extract(raw []byte) (text string, err error) {
	if len(raw) == 0 {
		return "", ErrEmptyDocument
	}

	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to read page %d: %w", i, err)
		}
		pages = append(pages, content)
	}

	return strings.Join(pages, "\n"), nil
}

// ExtractOptional is Extract for preflight: nil means the text layer could
// not be read.
func ExtractOptional(raw []byte) *string {
	text, err := Extract(raw)
	if err != nil {
		return nil
	}
	return &text
}
