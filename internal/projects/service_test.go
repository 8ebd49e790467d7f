package projects

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/vaultindex/internal/index"
	"github.com/dharsanguruparan/vaultindex/internal/model"
	"github.com/dharsanguruparan/vaultindex/internal/storage"
)

type failingIndex struct{ index.Index }

func (failingIndex) Add(context.Context, index.AddRequest) (index.AddResult, error) {
	return index.AddResult{}, errors.New("index down")
}

func newService(t *testing.T) (*Service, *storage.ProjectStore, *index.Store) {
	t.Helper()
	idx, err := index.Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	store := storage.NewProjectStore()
	return NewService(store, idx, nil), store, idx
}

func TestCreateIndexesSynchronously(t *testing.T) {
	svc, store, idx := newService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateInput{Name: "Expressway S19", Contractor: "Budimex", Description: "Section Rzeszów"})
	require.NoError(t, err)
	require.NotEmpty(t, p.IndexEntryID)

	stored, err := store.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.IndexEntryID, stored.IndexEntryID)

	entry, err := idx.Get(ctx, p.IndexEntryID)
	require.NoError(t, err)
	assert.Equal(t, index.ProjectsNamespace, entry.Namespace)
	assert.Contains(t, entry.Text, "Contractor: Budimex")
	assert.Contains(t, entry.Text, "S-19")

	res, err := idx.Search(ctx, index.SearchRequest{Namespace: index.ProjectsNamespace, Query: "s 19"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Results)
	assert.Equal(t, p.ID, res.Results[0].Key)
}

func TestIdenticalProjectsGetSeparateNamespaces(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, CreateInput{Name: "Depot"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, CreateInput{Name: "Depot"})
	require.NoError(t, err)
	assert.NotEqual(t, a.IndexEntryID, b.IndexEntryID)
}

func TestCreateValidates(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Create(context.Background(), CreateInput{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEnsureIndexedAfterIndexOutage(t *testing.T) {
	_, store, idx := newService(t)
	ctx := context.Background()

	broken := NewService(store, failingIndex{idx}, nil)
	_, err := broken.Create(ctx, CreateInput{Name: "Bypass"})
	require.Error(t, err)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Empty(t, all[0].IndexEntryID)

	svc := NewService(store, idx, nil)
	p, err := svc.EnsureIndexed(ctx, all[0].ID)
	require.NoError(t, err)
	assert.NotEmpty(t, p.IndexEntryID)

	again, err := svc.EnsureIndexed(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.IndexEntryID, again.IndexEntryID)

	_, err = svc.EnsureIndexed(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRoadKeywords(t *testing.T) {
	assert.Equal(t, []string{"S 19", "S-19", "S19"}, RoadKeywords("budowa drogi s-19"))
	assert.Equal(t, []string{"A 4", "A-4", "A4", "DK 94", "DK-94", "DK94"}, RoadKeywords("A4 and DK 94"))
	assert.Empty(t, RoadKeywords("no roads here, only S1000 and Sx"))
}

func TestDescriptor(t *testing.T) {
	got := Descriptor(&model.Project{Name: "Ring road", Contractor: "Strabag"})
	assert.Equal(t, "Project: Ring road\nContractor: Strabag", got)
}
