package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dharsanguruparan/vaultindex/internal/model"
)

type blob struct {
	data        []byte
	contentType string
}

// BlobStore is an in-memory object store with the same semantics as the
// S3-backed stores: missing objects surface as model.ErrBlobNotFound and
// deletes are idempotent.
type BlobStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]blob
	presign func(ref string, ttl time.Duration) (string, error)
}

func NewBlobStore(bucket string) *BlobStore {
	return &BlobStore{bucket: bucket, objects: make(map[string]blob)}
}

func (m *BlobStore) Put(_ context.Context, ref string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[ref] = blob{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

func (m *BlobStore) Get(_ context.Context, ref string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[ref]
	if !ok {
		return nil, model.ErrBlobNotFound
	}
	return append([]byte(nil), b.data...), nil
}

func (m *BlobStore) Exists(_ context.Context, ref string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[ref]
	return ok, nil
}

func (m *BlobStore) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, ref)
	return nil
}

// SetPresigner makes PresignUpload return URLs from fn, typically pointing at
// the API's blob route.
func (m *BlobStore) SetPresigner(fn func(ref string, ttl time.Duration) (string, error)) {
	m.mu.Lock()
	m.presign = fn
	m.mu.Unlock()
}

// PresignUpload returns a pseudo URL unless a presigner is set; without one
// callers Put the bytes directly.
func (m *BlobStore) PresignUpload(_ context.Context, ref string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	fn := m.presign
	m.mu.RUnlock()
	if fn != nil {
		return fn(ref, ttl)
	}
	return fmt.Sprintf("memory://%s/%s?expires=%d", m.bucket, ref, int64(ttl.Seconds())), nil
}
