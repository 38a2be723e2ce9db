package pdftext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_Empty(t *testing.T) {
	_, err := Extract(nil)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestExtract_NotAPDF(t *testing.T) {
	_, err := Extract([]byte("\x89PNG\r\n\x1a\n not a pdf at all"))
	assert.Error(t, err)
}

func TestExtractOptional(t *testing.T) {
	assert.Nil(t, ExtractOptional(nil))
	assert.Nil(t, ExtractOptional([]byte("%PDF-1.4 truncated")))
}
