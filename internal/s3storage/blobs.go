// Package s3storage stores uploaded blobs in object storage.
package s3storage

import (
	"context"
	"fmt"
	"time"

	"github.com/dharsanguruparan/vaultindex/internal/config"
	"github.com/dharsanguruparan/vaultindex/internal/storage"
)

// Blobs is implemented by every backend.
type Blobs interface {
	Put(ctx context.Context, ref string, data []byte, contentType string) error
	Get(ctx context.Context, ref string) ([]byte, error)
	Exists(ctx context.Context, ref string) (bool, error)
	Delete(ctx context.Context, ref string) error
	PresignUpload(ctx context.Context, ref string, ttl time.Duration) (string, error)
}

// Open returns the backend selected by cfg.BlobBackend. The minio backend
// creates its bucket on first use.
func Open(ctx context.Context, cfg *config.Config) (Blobs, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendMinio:
		store, err := New(cfg)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case config.BlobBackendS3:
		return NewAWS(ctx, cfg)
	case config.BlobBackendMemory, "":
		return storage.NewBlobStore(cfg.UploadBucket), nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.BlobBackend)
	}
}
