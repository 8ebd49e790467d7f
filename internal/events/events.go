// Package events publishes document lifecycle changes for downstream
// consumers.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/dharsanguruparan/vaultindex/internal/model"
)

// Event types, one per terminal status plus deletion.
const (
	TypeDocumentDone      = "document.done"
	TypeDocumentDuplicate = "document.duplicate"
	TypeDocumentError     = "document.error"
	TypeDocumentDeleted   = "document.deleted"
)

// Event is the JSON body published for a document.
type Event struct {
	Type         string       `json:"type"`
	DocumentID   string       `json:"documentId"`
	Scope        model.Scope  `json:"scope"`
	ProjectID    string       `json:"projectId,omitempty"`
	Filename     string       `json:"filename"`
	Status       model.Status `json:"status,omitempty"`
	IndexEntryID string       `json:"indexEntryId,omitempty"`
	Error        string       `json:"error,omitempty"`
	OccurredAt   time.Time    `json:"occurredAt"`
}

// ForStatus returns the event type announcing a terminal status.
func ForStatus(s model.Status) string {
	return "document." + string(s)
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Nop discards events. Used when NATS_URL is empty.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, evt)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
