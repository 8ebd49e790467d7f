// Package storage contains in-memory implementations of the record and blob
// stores. They back local development (no DATABASE_URL) and the tests.
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/vaultindex/internal/model"
)

// DocumentStore keeps documents in a map guarded by an RWMutex. Prepare and
// Finalize hold the write lock, which serializes them per store.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*model.Document
	now  func() time.Time
}

// NewDocumentStore constructs an empty DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs: make(map[string]*model.Document),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Prepare reuses the live record for (scope, project, filename) or inserts a
// new one, and hands out a fresh attempt token.
func (m *DocumentStore) Prepare(_ context.Context, p model.PrepareParams) (model.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	doc := m.findLocked(p.Scope, p.ProjectID, p.Filename)
	if doc == nil {
		doc = &model.Document{
			ID:        uuid.NewString(),
			Scope:     p.Scope,
			ProjectID: p.ProjectID,
			Filename:  p.Filename,
			CreatedAt: now,
		}
		m.docs[doc.ID] = doc
	}
	if doc.IndexEntryID != "" {
		doc.PreviousEntryID = doc.IndexEntryID
	}
	claim := model.Claim{
		DocumentID:      doc.ID,
		Attempt:         uuid.NewString(),
		PreviousEntryID: doc.PreviousEntryID,
	}
	doc.Title = p.Title
	doc.DocumentNumber = p.DocumentNumber
	doc.Tags = append([]string(nil), p.Tags...)
	if p.Metadata != nil {
		doc.Metadata = *p.Metadata
	}
	doc.Status = model.StatusProcessing
	doc.Error = ""
	doc.IndexEntryID = ""
	doc.Attempt = claim.Attempt
	doc.UpdatedAt = now
	return claim, nil
}

// Finalize writes the terminal outcome if the claim is still current.
func (m *DocumentStore) Finalize(_ context.Context, claim model.Claim, outcome model.Outcome) error {
	if err := outcome.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[claim.DocumentID]
	if !ok {
		return model.ErrNotFound
	}
	if doc.Attempt != claim.Attempt {
		return model.ErrStaleAttempt
	}
	doc.Status = outcome.Status()
	doc.IndexEntryID = outcome.EntryID()
	doc.Error = outcome.Message()
	doc.PreviousEntryID = ""
	doc.UpdatedAt = m.now()
	return nil
}

// Reclaim hands a fresh attempt to a record still in processing under
// claim. The entry it may hold moves to PreviousEntryID like in Prepare.
func (m *DocumentStore) Reclaim(_ context.Context, claim model.Claim) (model.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[claim.DocumentID]
	if !ok {
		return model.Claim{}, model.ErrNotFound
	}
	if doc.Attempt != claim.Attempt || doc.Status != model.StatusProcessing {
		return model.Claim{}, model.ErrStaleAttempt
	}
	if doc.IndexEntryID != "" {
		doc.PreviousEntryID = doc.IndexEntryID
	}
	doc.IndexEntryID = ""
	doc.Error = ""
	doc.Attempt = uuid.NewString()
	doc.UpdatedAt = m.now()
	return model.Claim{
		DocumentID:      doc.ID,
		Attempt:         doc.Attempt,
		PreviousEntryID: doc.PreviousEntryID,
	}, nil
}

// Get returns a copy of the record.
func (m *DocumentStore) Get(_ context.Context, id string) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneDocument(doc), nil
}

// List returns matching records, newest first.
func (m *DocumentStore) List(_ context.Context, f model.DocumentFilter) ([]model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Document, 0)
	for _, doc := range m.docs {
		if f.Matches(doc) {
			out = append(out, *cloneDocument(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// ListByStatus returns records in status, oldest update first. A non-zero
// updatedBefore skips records touched after it.
func (m *DocumentStore) ListByStatus(_ context.Context, status model.Status, updatedBefore time.Time) ([]model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Document, 0)
	for _, doc := range m.docs {
		if doc.Status != status {
			continue
		}
		if !updatedBefore.IsZero() && doc.UpdatedAt.After(updatedBefore) {
			continue
		}
		out = append(out, *cloneDocument(doc))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out, nil
}

// CountByIndexEntry counts records other than excludeID that hold entryID,
// either as their entry or as the entry they are being re-ingested from.
func (m *DocumentStore) CountByIndexEntry(_ context.Context, entryID, excludeID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for id, doc := range m.docs {
		if id != excludeID && (doc.IndexEntryID == entryID || doc.PreviousEntryID == entryID) {
			n++
		}
	}
	return n, nil
}

// Delete removes the record.
func (m *DocumentStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return model.ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *DocumentStore) findLocked(scope model.Scope, projectID, filename string) *model.Document {
	for _, doc := range m.docs {
		if doc.Scope == scope && doc.ProjectID == projectID && doc.Filename == filename {
			return doc
		}
	}
	return nil
}

func cloneDocument(doc *model.Document) *model.Document {
	c := *doc
	c.Tags = append([]string(nil), doc.Tags...)
	return &c
}
