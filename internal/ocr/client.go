// Package ocr turns an uploaded blob into text.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/vaultindex/internal/model"
	pdfutil "github.com/dharsanguruparan/vaultindex/internal/pdf"
)

// ErrUnsupportedFormat is returned for MIME types without an extractor.
var ErrUnsupportedFormat = errors.New("unsupported format")

// BlobReader is the part of the blob store the client needs.
type BlobReader interface {
	Get(ctx context.Context, ref string) ([]byte, error)
}

// Client extracts text from PDF blobs.
type Client struct {
	blobs   BlobReader
	extract func([]byte) (string, error)
	log     *zap.Logger
}

func NewClient(blobs BlobReader, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{blobs: blobs, extract: pdfutil.ExtractText, log: log}
}

// Extract returns the text of the blob at ref. A missing blob yields "" with
// no error; callers decide whether that is fatal.
func (c *Client) Extract(ctx context.Context, ref, mimeType string) (string, error) {
	if !IsPDF(mimeType) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mimeType)
	}
	data, err := c.blobs.Get(ctx, ref)
	if errors.Is(err, model.ErrBlobNotFound) {
		c.log.Warn("blob missing during extraction", zap.String("blobRef", ref))
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load blob: %w", err)
	}
	text, err := c.extract(data)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	c.log.Debug("text extracted", zap.String("blobRef", ref), zap.Int("bytes", len(text)))
	return text, nil
}

// IsPDF reports whether mimeType names a PDF, ignoring parameters and case.
func IsPDF(mimeType string) bool {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mt == "application/pdf" || mt == "application/x-pdf"
}
