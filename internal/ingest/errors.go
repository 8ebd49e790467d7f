package ingest

import (
	"errors"

	"github.com/dharsanguruparan/vaultindex/internal/ocr"
)

var (
	// ErrUnsupportedFormat marks a blob whose MIME type has no extractor.
	ErrUnsupportedFormat = ocr.ErrUnsupportedFormat
	// ErrNamespaceNotReady means the project exists but has not been indexed
	// yet. It is the one pipeline error worth retrying.
	ErrNamespaceNotReady = errors.New("project namespace not ready")
	ErrMissingProject    = errors.New("project not found")
	ErrMissingBlob       = errors.New("blob not found in storage")
	ErrNoText            = errors.New("no text to index")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrNoQueue           = errors.New("no work queue configured")
)

// Retryable reports whether running the same request again could succeed.
// Unknown errors come from downstream services and are retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrUnsupportedFormat),
		errors.Is(err, ErrMissingProject),
		errors.Is(err, ErrMissingBlob),
		errors.Is(err, ErrNoText),
		errors.Is(err, ErrInvalidRequest):
		return false
	}
	return true
}
