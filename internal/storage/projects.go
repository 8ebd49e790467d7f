package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dharsanguruparan/vaultindex/internal/model"
)

// ProjectStore keeps projects in memory.
type ProjectStore struct {
	mu       sync.RWMutex
	projects map[string]*model.Project
}

func NewProjectStore() *ProjectStore {
	return &ProjectStore{projects: make(map[string]*model.Project)}
}

func (m *ProjectStore) Create(_ context.Context, p *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	c := *p
	m.projects[p.ID] = &c
	return nil
}

func (m *ProjectStore) Get(_ context.Context, id string) (*model.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (m *ProjectStore) SetIndexEntry(_ context.Context, id, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return model.ErrNotFound
	}
	p.IndexEntryID = entryID
	return nil
}

func (m *ProjectStore) List(_ context.Context) ([]model.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
