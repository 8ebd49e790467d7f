package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/vaultindex/internal/model"
)

func prepare(t *testing.T, s *DocumentStore, scope model.Scope, project, filename string) model.Claim {
	t.Helper()
	claim, err := s.Prepare(context.Background(), model.PrepareParams{
		Scope:     scope,
		ProjectID: project,
		Filename:  filename,
		Title:     filename,
		Metadata:  &model.Metadata{BlobRef: "uploads/" + filename, MimeType: "application/pdf"},
	})
	require.NoError(t, err)
	return claim
}

func TestPrepareReusesRecordPerScopeAndFilename(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()

	first := prepare(t, s, model.ScopeGlobal, "", "report.pdf")
	require.NoError(t, s.Finalize(ctx, first, model.Done("entry-1")))

	second := prepare(t, s, model.ScopeGlobal, "", "report.pdf")
	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.NotEqual(t, first.Attempt, second.Attempt)
	assert.Equal(t, "entry-1", second.PreviousEntryID)

	doc, err := s.Get(ctx, second.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, doc.Status)
	assert.Empty(t, doc.IndexEntryID)
	assert.Empty(t, doc.Error)

	other := prepare(t, s, model.ScopeProject, "p1", "report.pdf")
	assert.NotEqual(t, first.DocumentID, other.DocumentID)

	all, err := s.List(ctx, model.DocumentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPrepareClearsError(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()

	claim := prepare(t, s, model.ScopeGlobal, "", "scan.pdf")
	require.NoError(t, s.Finalize(ctx, claim, model.Failed("ocr timeout")))

	claim = prepare(t, s, model.ScopeGlobal, "", "scan.pdf")
	doc, err := s.Get(ctx, claim.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, doc.Status)
	assert.Empty(t, doc.Error)
}

func TestPrepareKeepsMetadataWhenNil(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()

	claim := prepare(t, s, model.ScopeGlobal, "", "a.pdf")
	_, err := s.Prepare(ctx, model.PrepareParams{Scope: model.ScopeGlobal, Filename: "a.pdf", Title: "renamed"})
	require.NoError(t, err)

	doc, err := s.Get(ctx, claim.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "uploads/a.pdf", doc.Metadata.BlobRef)
	assert.Equal(t, "renamed", doc.Title)
}

func TestFinalizeIsCompareAndSwap(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()

	stale := prepare(t, s, model.ScopeGlobal, "", "a.pdf")
	current := prepare(t, s, model.ScopeGlobal, "", "a.pdf")

	assert.ErrorIs(t, s.Finalize(ctx, stale, model.Done("old")), model.ErrStaleAttempt)
	require.NoError(t, s.Finalize(ctx, current, model.Duplicate("entry-9")))

	doc, err := s.Get(ctx, current.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDuplicate, doc.Status)
	assert.Equal(t, "entry-9", doc.IndexEntryID)
}

func TestReclaimSwapsAttemptOnlyWhileProcessing(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()

	first := prepare(t, s, model.ScopeGlobal, "", "a.pdf")
	require.NoError(t, s.Finalize(ctx, first, model.Done("entry-1")))
	scanned := prepare(t, s, model.ScopeGlobal, "", "a.pdf")

	next, err := s.Reclaim(ctx, scanned)
	require.NoError(t, err)
	assert.Equal(t, scanned.DocumentID, next.DocumentID)
	assert.NotEqual(t, scanned.Attempt, next.Attempt)
	assert.Equal(t, "entry-1", next.PreviousEntryID)

	_, err = s.Reclaim(ctx, scanned)
	assert.ErrorIs(t, err, model.ErrStaleAttempt)
	assert.ErrorIs(t, s.Finalize(ctx, scanned, model.Done("old")), model.ErrStaleAttempt)

	require.NoError(t, s.Finalize(ctx, next, model.Done("entry-2")))
	_, err = s.Reclaim(ctx, next)
	assert.ErrorIs(t, err, model.ErrStaleAttempt)
	doc, err := s.Get(ctx, next.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, doc.Status)
	assert.Equal(t, "entry-2", doc.IndexEntryID)

	require.NoError(t, s.Delete(ctx, next.DocumentID))
	_, err = s.Reclaim(ctx, next)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestFinalizeRejectsInvalidAndMissing(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()

	claim := prepare(t, s, model.ScopeGlobal, "", "a.pdf")
	assert.ErrorIs(t, s.Finalize(ctx, claim, model.Done("")), model.ErrInvalidOutcome)

	require.NoError(t, s.Delete(ctx, claim.DocumentID))
	assert.ErrorIs(t, s.Finalize(ctx, claim, model.Done("e")), model.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, claim.DocumentID), model.ErrNotFound)
}

func TestListByStatusAndCount(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.now = func() time.Time { return now }

	a := prepare(t, s, model.ScopeGlobal, "", "a.pdf")
	now = base.Add(time.Hour)
	b := prepare(t, s, model.ScopeGlobal, "", "b.pdf")
	c := prepare(t, s, model.ScopeGlobal, "", "c.pdf")
	require.NoError(t, s.Finalize(ctx, c, model.Done("shared")))
	d := prepare(t, s, model.ScopeGlobal, "", "d.pdf")
	require.NoError(t, s.Finalize(ctx, d, model.Duplicate("shared")))

	stuck, err := s.ListByStatus(ctx, model.StatusProcessing, time.Time{})
	require.NoError(t, err)
	require.Len(t, stuck, 2)
	assert.Equal(t, a.DocumentID, stuck[0].ID)
	assert.Equal(t, b.DocumentID, stuck[1].ID)

	old, err := s.ListByStatus(ctx, model.StatusProcessing, base.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, old, 1)
	assert.Equal(t, a.DocumentID, old[0].ID)

	n, err := s.CountByIndexEntry(ctx, "shared", "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = s.CountByIndexEntry(ctx, "shared", c.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRepeatedPrepareKeepsPreviousEntry(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()

	claim := prepare(t, s, model.ScopeGlobal, "", "plan.pdf")
	require.NoError(t, s.Finalize(ctx, claim, model.Done("entry-1")))

	registered := prepare(t, s, model.ScopeGlobal, "", "plan.pdf")
	processing := prepare(t, s, model.ScopeGlobal, "", "plan.pdf")
	assert.Equal(t, "entry-1", registered.PreviousEntryID)
	assert.Equal(t, "entry-1", processing.PreviousEntryID)

	n, err := s.CountByIndexEntry(ctx, "entry-1", "someone-else")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Finalize(ctx, processing, model.Done("entry-2")))
	next := prepare(t, s, model.ScopeGlobal, "", "plan.pdf")
	assert.Equal(t, "entry-2", next.PreviousEntryID)
}
