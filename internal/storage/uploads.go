package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dharsanguruparan/vaultindex/internal/model"
)

// UploadStore keeps upload records in memory.
type UploadStore struct {
	mu      sync.RWMutex
	uploads map[string]*model.Upload
}

func NewUploadStore() *UploadStore {
	return &UploadStore{uploads: make(map[string]*model.Upload)}
}

func (m *UploadStore) Create(_ context.Context, up *model.Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if up.CreatedAt.IsZero() {
		up.CreatedAt = now
	}
	up.UpdatedAt = now
	c := *up
	m.uploads[up.ID] = &c
	return nil
}

func (m *UploadStore) Get(_ context.Context, id string) (*model.Upload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	up, ok := m.uploads[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	c := *up
	return &c, nil
}

func (m *UploadStore) SetStatus(_ context.Context, id string, status model.Status, msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	up, ok := m.uploads[id]
	if !ok {
		return model.ErrNotFound
	}
	up.Status = status
	up.Error = msg
	up.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *UploadStore) List(_ context.Context, f model.UploadFilter) ([]model.Upload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Upload, 0)
	for _, up := range m.uploads {
		if f.ProjectID != "" && up.ProjectID != f.ProjectID {
			continue
		}
		if f.Status != "" && up.Status != f.Status {
			continue
		}
		out = append(out, *up)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
