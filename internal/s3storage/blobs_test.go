package s3storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/vaultindex/internal/config"
	"github.com/dharsanguruparan/vaultindex/internal/model"
	"github.com/dharsanguruparan/vaultindex/internal/storage"
)

func TestOpenMemoryBackend(t *testing.T) {
	ctx := context.Background()
	blobs, err := Open(ctx, &config.Config{BlobBackend: config.BlobBackendMemory, UploadBucket: "uploads"})
	require.NoError(t, err)
	require.IsType(t, &storage.BlobStore{}, blobs)

	require.NoError(t, blobs.Put(ctx, "a/b.pdf", []byte("%PDF"), "application/pdf"))
	ok, err := blobs.Exists(ctx, "a/b.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, blobs.Delete(ctx, "a/b.pdf"))
	require.NoError(t, blobs.Delete(ctx, "a/b.pdf"))
	_, err = blobs.Get(ctx, "a/b.pdf")
	assert.ErrorIs(t, err, model.ErrBlobNotFound)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{BlobBackend: "tape"})
	assert.Error(t, err)
}

func TestNewAWSRequiresCredentials(t *testing.T) {
	_, err := NewAWS(context.Background(), &config.Config{BlobBackend: config.BlobBackendS3, UploadBucket: "b"})
	assert.Error(t, err)
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "http://localhost:9000", endpointURL("localhost:9000", false))
	assert.Equal(t, "https://s3.example.com", endpointURL("s3.example.com", true))
	assert.Equal(t, "http://minio:9000", endpointURL("http://minio:9000", true))
}

func TestAWSPresignUsesBucketAndKey(t *testing.T) {
	store, err := NewAWS(context.Background(), &config.Config{
		S3AccessKey:  "key",
		S3SecretKey:  "secret",
		S3Region:     "us-east-1",
		S3Endpoint:   "localhost:9000",
		UploadBucket: "uploads",
	})
	require.NoError(t, err)

	url, err := store.PresignUpload(context.Background(), "uploads/x/report.pdf", 15*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "http://localhost:9000/uploads/uploads/x/report.pdf")
	assert.Contains(t, url, "X-Amz-Signature=")
}
