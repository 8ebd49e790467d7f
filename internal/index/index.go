// Package index is the content-addressed store searched by the assistant.
// Entries live in named namespaces and are unique per (namespace, fingerprint).
package index

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// GlobalNamespace holds documents that do not belong to a project.
const GlobalNamespace = "global"

// ProjectsNamespace holds one descriptor entry per project; the entry id of
// that descriptor becomes the project's own namespace.
const ProjectsNamespace = "projects"

var (
	ErrNotFound           = errors.New("index entry not found")
	ErrInvalidNamespace   = errors.New("namespace is required")
	ErrInvalidFingerprint = errors.New("fingerprint is required")
)

// Entry is one indexed text.
type Entry struct {
	ID          string            `json:"id"`
	Namespace   string            `json:"namespace"`
	Key         string            `json:"key"`
	Title       string            `json:"title"`
	Text        string            `json:"text"`
	Fingerprint string            `json:"fingerprint"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// AddRequest describes content to index. Text is stored as given; the
// fingerprint decides identity.
type AddRequest struct {
	Namespace   string
	Text        string
	Key         string
	Title       string
	Metadata    map[string]string
	Fingerprint string
}

// AddResult reports the entry holding the content and whether this call
// created it.
type AddResult struct {
	EntryID string
	Created bool
	Entry   Entry
}

type SearchRequest struct {
	Namespace      string
	Query          string
	Limit          int
	ScoreThreshold float64
}

type SearchResult struct {
	EntryID string  `json:"entryId"`
	Key     string  `json:"key"`
	Title   string  `json:"title"`
	Score   float64 `json:"score"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Entries []Entry        `json:"entries"`
}

// Index is the contract the pipeline relies on. Add is idempotent per
// (namespace, fingerprint); Delete tolerates missing entries.
type Index interface {
	Add(ctx context.Context, req AddRequest) (AddResult, error)
	Search(ctx context.Context, req SearchRequest) (SearchResponse, error)
	Delete(ctx context.Context, entryID string) error
	Get(ctx context.Context, entryID string) (*Entry, error)
}

// EntryID derives the deterministic id of the entry holding fingerprint in
// namespace, so concurrent adders converge on the same id.
func EntryID(namespace, fingerprint string) string {
	h, _ := blake2b.New(16, nil) // 128 bits
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write([]byte(fingerprint))
	return hex.EncodeToString(h.Sum(nil))
}
