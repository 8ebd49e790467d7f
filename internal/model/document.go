// Package model contains the records shared by the stores, the pipeline and
// the API.
package model

import (
	"strings"
	"time"
)

// Scope tells whether a document belongs to the global knowledge base or to a
// single project.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeProject Scope = "project"
)

// Valid reports whether s is one of the known scopes.
func (s Scope) Valid() bool {
	return s == ScopeGlobal || s == ScopeProject
}

// Status is the processing lifecycle shared by documents and uploads.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusDuplicate  Status = "duplicate"
	StatusError      Status = "error"
)

// Terminal reports whether no pipeline step will move the record further.
func (s Status) Terminal() bool {
	switch s {
	case StatusDone, StatusDuplicate, StatusError:
		return true
	}
	return false
}

// Metadata is the bag persisted next to a document so deletion and recovery
// can find the uploaded blob again.
type Metadata struct {
	BlobRef  string `json:"blobRef,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Document is the canonical unit of the knowledge base.
type Document struct {
	ID             string    `json:"id"`
	Scope          Scope     `json:"scope"`
	ProjectID      string    `json:"projectId,omitempty"`
	Filename       string    `json:"filename"`
	Title          string    `json:"title"`
	DocumentNumber string    `json:"documentNumber,omitempty"`
	Tags           []string  `json:"tags,omitempty"`
	Status         Status    `json:"status"`
	Error          string    `json:"error,omitempty"`
	IndexEntryID   string    `json:"indexEntryId,omitempty"`
	Metadata       Metadata  `json:"metadata"`
	Attempt        string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	// PreviousEntryID remembers the entry held before the last prepare until a
	// finalize lands, so repeated prepares never lose it.
	PreviousEntryID string `json:"-"`
}

// HasPDFExtension reports whether the stored filename names a PDF.
func (d *Document) HasPDFExtension() bool {
	return strings.HasSuffix(strings.ToLower(d.Filename), ".pdf")
}

// Claim is handed out by Prepare and Reclaim. Finalize only applies while Attempt is still
// the record's current attempt, so a superseded run can never overwrite a
// newer one. PreviousEntryID is the entry the record pointed at before it
// went back to processing.
type Claim struct {
	DocumentID      string
	Attempt         string
	PreviousEntryID string
}

// PrepareParams identifies the record by (Scope, ProjectID, Filename) and
// carries the descriptive fields refreshed on every prepare. Filename must
// already be canonical.
type PrepareParams struct {
	Scope          Scope
	ProjectID      string
	Filename       string
	Title          string
	DocumentNumber string
	Tags           []string
	// Metadata replaces the stored metadata when non-nil.
	Metadata *Metadata
}

// DocumentFilter narrows List results. Zero fields match everything.
type DocumentFilter struct {
	Scope     Scope
	ProjectID string
	Status    Status
	Limit     int
}

// Matches reports whether doc passes every non-zero field of the filter.
func (f DocumentFilter) Matches(doc *Document) bool {
	if f.Scope != "" && doc.Scope != f.Scope {
		return false
	}
	if f.ProjectID != "" && doc.ProjectID != f.ProjectID {
		return false
	}
	if f.Status != "" && doc.Status != f.Status {
		return false
	}
	return true
}
