package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/vaultindex/internal/model"
	"github.com/dharsanguruparan/vaultindex/internal/storage"
)

// scanRace runs after on the records ListByStatus returned, before recovery
// acts on them.
type scanRace struct {
	*storage.DocumentStore
	after func(ctx context.Context, docs []model.Document)
}

func (r *scanRace) ListByStatus(ctx context.Context, status model.Status, updatedBefore time.Time) ([]model.Document, error) {
	docs, err := r.DocumentStore.ListByStatus(ctx, status, updatedBefore)
	if err == nil {
		r.after(ctx, docs)
	}
	return docs, err
}

func stick(t *testing.T, h *harness, filename string, meta *model.Metadata) model.Claim {
	t.Helper()
	claim, err := h.docs.Prepare(context.Background(), model.PrepareParams{
		Scope:    model.ScopeGlobal,
		Filename: filename,
		Title:    filename,
		Metadata: meta,
	})
	require.NoError(t, err)
	return claim
}

func TestFixStuckDocuments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.putPDF(t, "uploads/1/good.pdf", "Recovered text")
	h.putPDF(t, "uploads/2/notes.docx", "word file")

	good := stick(t, h, "good.pdf", &model.Metadata{BlobRef: "uploads/1/good.pdf", MimeType: "application/pdf"})
	noRef := stick(t, h, "text-only.txt", nil)
	gone := stick(t, h, "gone.pdf", &model.Metadata{BlobRef: "uploads/3/gone.pdf", MimeType: "application/pdf"})
	docx := stick(t, h, "notes.docx", &model.Metadata{BlobRef: "uploads/2/notes.docx", MimeType: "application/msword"})
	finished := h.ingestText(t, "finished.txt", "already done")

	report, err := h.svc.FixStuckDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Fixed)
	assert.Empty(t, report.Errors)

	assert.Equal(t, model.StatusDone, h.doc(t, good.DocumentID).Status)
	assert.NotEmpty(t, h.doc(t, good.DocumentID).IndexEntryID)
	assert.Equal(t, model.StatusError, h.doc(t, noRef.DocumentID).Status)
	assert.Equal(t, model.StatusError, h.doc(t, gone.DocumentID).Status)
	assert.Contains(t, h.doc(t, gone.DocumentID).Error, "blob not found")
	unsupported := h.doc(t, docx.DocumentID)
	assert.Equal(t, model.StatusError, unsupported.Status)
	assert.Contains(t, unsupported.Error, "unsupported format")
	assert.Equal(t, model.StatusDone, h.doc(t, finished.DocumentID).Status)
}

func TestFixStuckDocumentsSecondPassIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	gone := stick(t, h, "gone.pdf", &model.Metadata{BlobRef: "uploads/3/gone.pdf", MimeType: "application/pdf"})

	first, err := h.svc.FixStuckDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Fixed)
	before := h.doc(t, gone.DocumentID)

	second, err := h.svc.FixStuckDocuments(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Fixed)
	after := h.doc(t, gone.DocumentID)
	assert.Equal(t, model.StatusError, after.Status)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
	assert.Zero(t, h.ocr.Calls())
}

func TestFixStuckDocumentsCollectsErrorsAndContinues(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.putPDF(t, "uploads/1/a.pdf", "alpha")
	h.putPDF(t, "uploads/2/b.pdf", "beta")
	a := stick(t, h, "a.pdf", &model.Metadata{BlobRef: "uploads/1/a.pdf", MimeType: "application/pdf"})
	b := stick(t, h, "b.pdf", &model.Metadata{BlobRef: "uploads/2/b.pdf", MimeType: "application/pdf"})
	h.ocr.err = errors.New("ocr unavailable")

	report, err := h.svc.FixStuckDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Fixed)
	require.Len(t, report.Errors, 2)
	assert.Contains(t, report.Errors[0], "ocr unavailable")
	assert.Equal(t, model.StatusError, h.doc(t, a.DocumentID).Status)
	assert.Equal(t, model.StatusError, h.doc(t, b.DocumentID).Status)
}

func TestFixStuckDocumentsBlobCheckFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	claim := stick(t, h, "a.pdf", &model.Metadata{BlobRef: "uploads/1/a.pdf", MimeType: "application/pdf"})
	h.blobs.existsErr = errors.New("storage timeout")

	report, err := h.svc.FixStuckDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fixed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "storage timeout")
	assert.Equal(t, model.StatusError, h.doc(t, claim.DocumentID).Status)
}

func TestFixStuckDocumentsTrustsPDFExtension(t *testing.T) {
	h := newHarness(t)
	h.putPDF(t, "uploads/1/scan.pdf", "scanned text")
	claim := stick(t, h, "scan.pdf", &model.Metadata{BlobRef: "uploads/1/scan.pdf", MimeType: "application/octet-stream"})

	report, err := h.svc.FixStuckDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Errors)
	doc := h.doc(t, claim.DocumentID)
	assert.Equal(t, model.StatusDone, doc.Status)
	assert.Equal(t, "application/octet-stream", doc.Metadata.MimeType)
}

func TestFixStuckDocumentsMinAge(t *testing.T) {
	h := newHarness(t)
	h.svc.opts.RecoveryMinAge = time.Hour
	stick(t, h, "fresh.pdf", nil)

	report, err := h.svc.FixStuckDocuments(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Fixed)
}

func TestFixStuckDocumentsSkipsRecordDeletedAfterScan(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.putPDF(t, "uploads/1/a.pdf", "alpha")
	stick(t, h, "a.pdf", &model.Metadata{BlobRef: "uploads/1/a.pdf", MimeType: "application/pdf"})
	h.svc.docs = &scanRace{DocumentStore: h.docs, after: func(ctx context.Context, docs []model.Document) {
		for _, doc := range docs {
			require.NoError(t, h.docs.Delete(ctx, doc.ID))
		}
	}}

	report, err := h.svc.FixStuckDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fixed)
	assert.Empty(t, report.Errors)

	docs, err := h.docs.List(ctx, model.DocumentFilter{})
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Zero(t, h.idx.Adds())
	assert.Zero(t, h.ocr.Calls())
}

func TestFixStuckDocumentsLeavesRecordFinishedAfterScan(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.putPDF(t, "uploads/1/a.pdf", "alpha")
	claim := stick(t, h, "a.pdf", &model.Metadata{BlobRef: "uploads/1/a.pdf", MimeType: "application/pdf"})
	h.svc.docs = &scanRace{DocumentStore: h.docs, after: func(ctx context.Context, _ []model.Document) {
		require.NoError(t, h.docs.Finalize(ctx, claim, model.Done("entry-live")))
	}}

	report, err := h.svc.FixStuckDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Errors)

	doc := h.doc(t, claim.DocumentID)
	assert.Equal(t, model.StatusDone, doc.Status)
	assert.Equal(t, "entry-live", doc.IndexEntryID)
	assert.Zero(t, h.idx.Adds())
}

func TestFixStuckDocumentsYieldsToNewerAttempt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.putPDF(t, "uploads/1/a.pdf", "alpha")
	stick(t, h, "a.pdf", &model.Metadata{BlobRef: "uploads/1/a.pdf", MimeType: "application/pdf"})
	var newer model.Claim
	h.svc.docs = &scanRace{DocumentStore: h.docs, after: func(ctx context.Context, _ []model.Document) {
		newer = stick(t, h, "a.pdf", nil)
	}}

	report, err := h.svc.FixStuckDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Errors)

	doc := h.doc(t, newer.DocumentID)
	assert.Equal(t, model.StatusProcessing, doc.Status)
	assert.Equal(t, newer.Attempt, doc.Attempt)
	assert.Zero(t, h.idx.Adds())
}
