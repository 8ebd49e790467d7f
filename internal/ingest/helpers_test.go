package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/vaultindex/internal/events"
	"github.com/dharsanguruparan/vaultindex/internal/index"
	"github.com/dharsanguruparan/vaultindex/internal/model"
	"github.com/dharsanguruparan/vaultindex/internal/queue"
	"github.com/dharsanguruparan/vaultindex/internal/storage"
)

// blobText is an extractor that treats blob bytes as the extracted text.
type blobText struct {
	blobs *storage.BlobStore

	mu    sync.Mutex
	calls int
	err   error
}

func (o *blobText) Extract(ctx context.Context, ref, mimeType string) (string, error) {
	o.mu.Lock()
	o.calls++
	err := o.err
	o.mu.Unlock()
	if err != nil {
		return "", err
	}
	data, err := o.blobs.Get(ctx, ref)
	if errors.Is(err, model.ErrBlobNotFound) {
		return "", nil
	}
	return string(data), err
}

func (o *blobText) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

// countingIndex wraps the badger index to count calls and inject failures.
type countingIndex struct {
	index.Index

	mu        sync.Mutex
	adds      int
	deletes   []string
	addErr    error
	deleteErr error
}

func (c *countingIndex) Add(ctx context.Context, req index.AddRequest) (index.AddResult, error) {
	c.mu.Lock()
	c.adds++
	err := c.addErr
	c.mu.Unlock()
	if err != nil {
		return index.AddResult{}, err
	}
	return c.Index.Add(ctx, req)
}

func (c *countingIndex) Delete(ctx context.Context, entryID string) error {
	c.mu.Lock()
	c.deletes = append(c.deletes, entryID)
	err := c.deleteErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.Index.Delete(ctx, entryID)
}

func (c *countingIndex) Adds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adds
}

type flakyBlobs struct {
	*storage.BlobStore
	existsErr error
	deleteErr error
}

func (f *flakyBlobs) Exists(ctx context.Context, ref string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.BlobStore.Exists(ctx, ref)
}

func (f *flakyBlobs) Delete(ctx context.Context, ref string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.BlobStore.Delete(ctx, ref)
}

type recordingQueue struct {
	mu    sync.Mutex
	tasks []queue.Task
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, task queue.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

type harness struct {
	svc      *Service
	docs     *storage.DocumentStore
	uploads  *storage.UploadStore
	projects *storage.ProjectStore
	blobs    *flakyBlobs
	store    *index.Store
	idx      *countingIndex
	ocr      *blobText
	events   *events.Recorder
	queue    *recordingQueue
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := index.Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{
		docs:     storage.NewDocumentStore(),
		uploads:  storage.NewUploadStore(),
		projects: storage.NewProjectStore(),
		blobs:    &flakyBlobs{BlobStore: storage.NewBlobStore("test")},
		store:    store,
		events:   &events.Recorder{},
		queue:    &recordingQueue{},
	}
	h.idx = &countingIndex{Index: store}
	h.ocr = &blobText{blobs: h.blobs.BlobStore}
	h.svc = New(Deps{
		Documents: h.docs,
		Uploads:   h.uploads,
		Projects:  h.projects,
		Blobs:     h.blobs,
		OCR:       h.ocr,
		Index:     h.idx,
		Events:    h.events,
		Queue:     h.queue,
	}, Options{})
	return h
}

func (h *harness) putPDF(t *testing.T, ref, text string) {
	t.Helper()
	require.NoError(t, h.blobs.Put(context.Background(), ref, []byte(text), "application/pdf"))
}

func (h *harness) doc(t *testing.T, id string) *model.Document {
	t.Helper()
	doc, err := h.docs.Get(context.Background(), id)
	require.NoError(t, err)
	return doc
}

func (h *harness) ingestText(t *testing.T, filename, text string) Result {
	t.Helper()
	res, err := h.svc.Ingest(context.Background(), Request{Scope: model.ScopeGlobal, Filename: filename, Text: text})
	require.NoError(t, err)
	return res
}

func (h *harness) ingestBlob(t *testing.T, filename, ref, mimeType string) Result {
	t.Helper()
	res, err := h.svc.Ingest(context.Background(), Request{
		Scope:    model.ScopeGlobal,
		Filename: filename,
		BlobRef:  ref,
		MimeType: mimeType,
	})
	require.NoError(t, err)
	return res
}

func (h *harness) addProject(t *testing.T, id, entryID string) {
	t.Helper()
	require.NoError(t, h.projects.Create(context.Background(), &model.Project{ID: id, Name: id, IndexEntryID: entryID}))
}

func nopLogger() *zap.Logger { return zap.NewNop() }
