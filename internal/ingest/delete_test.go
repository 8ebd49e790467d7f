package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/vaultindex/internal/events"
	"github.com/dharsanguruparan/vaultindex/internal/model"
)

func TestDeleteRemovesEntryBlobAndRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.putPDF(t, "uploads/1/a.pdf", "Drainage report")
	res := h.ingestBlob(t, "a.pdf", "uploads/1/a.pdf", "application/pdf")

	require.NoError(t, h.svc.DeleteDocument(ctx, res.DocumentID))

	_, err := h.docs.Get(ctx, res.DocumentID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = h.store.Get(ctx, res.EntryID)
	assert.Error(t, err)
	exists, err := h.blobs.Exists(ctx, "uploads/1/a.pdf")
	require.NoError(t, err)
	assert.False(t, exists)

	got := h.events.Events()
	assert.Equal(t, events.TypeDocumentDeleted, got[len(got)-1].Type)
}

func TestDeleteToleratesMissingDownstreamState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.putPDF(t, "uploads/1/a.pdf", "Drainage report")
	res := h.ingestBlob(t, "a.pdf", "uploads/1/a.pdf", "application/pdf")

	require.NoError(t, h.store.Delete(ctx, res.EntryID))
	require.NoError(t, h.blobs.Delete(ctx, "uploads/1/a.pdf"))

	require.NoError(t, h.svc.DeleteDocument(ctx, res.DocumentID))
	_, err := h.docs.Get(ctx, res.DocumentID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeleteSwallowsDownstreamErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.putPDF(t, "uploads/1/a.pdf", "Drainage report")
	res := h.ingestBlob(t, "a.pdf", "uploads/1/a.pdf", "application/pdf")
	h.idx.deleteErr = errors.New("index down")
	h.blobs.deleteErr = errors.New("storage down")

	require.NoError(t, h.svc.DeleteDocument(ctx, res.DocumentID))
	_, err := h.docs.Get(ctx, res.DocumentID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeleteDuplicateKeepsSharedEntry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := h.ingestText(t, "a.txt", "Shared")
	dup := h.ingestText(t, "b.txt", "shared")
	require.Equal(t, model.StatusDuplicate, dup.Status)

	require.NoError(t, h.svc.DeleteDocument(ctx, dup.DocumentID))

	_, err := h.store.Get(ctx, owner.EntryID)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusDone, h.doc(t, owner.DocumentID).Status)
}

func TestDeleteMissingDocument(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.svc.DeleteDocument(context.Background(), "nope"), model.ErrNotFound)
}
