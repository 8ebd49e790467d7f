package pdfutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTextRejectsGarbage(t *testing.T) {
	_, err := ExtractText([]byte("definitely not a pdf"))
	assert.ErrorIs(t, err, ErrInvalidPDF)

	_, err = ExtractText(nil)
	assert.ErrorIs(t, err, ErrInvalidPDF)
}

func TestPageCountRejectsTruncatedHeader(t *testing.T) {
	_, err := PageCount([]byte("%PDF-1.4\n"))
	assert.ErrorIs(t, err, ErrInvalidPDF)
}
