package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"VAULTINDEX_ADDRESS", "DATABASE_URL", "REDIS_ADDR", "BLOB_BACKEND",
		"S3_ENDPOINT", "S3_ACCESS_KEY", "S3_SECRET_KEY", "WORKER_CONCURRENCY",
		"RETRY_MAX_ATTEMPTS", "RETRY_INITIAL_BACKOFF", "RETRY_BACKOFF_BASE",
		"RECOVERY_MIN_AGE", "UPLOAD_URL_TTL", "APP_ENV",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, BlobBackendMemory, cfg.BlobBackend)
	assert.Equal(t, 4, cfg.WorkerConcurrency)
	assert.Equal(t, 5, cfg.RetryMaxAttempts)
	assert.Equal(t, time.Second, cfg.RetryInitialBackoff)
	assert.Equal(t, 2.0, cfg.RetryBackoffBase)
	assert.Zero(t, cfg.RecoveryMinAge)
	assert.Empty(t, cfg.DatabaseURL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverridesAndFallbacks(t *testing.T) {
	clearEnv(t)
	t.Setenv("WORKER_CONCURRENCY", "8")
	t.Setenv("RETRY_INITIAL_BACKOFF", "250ms")
	t.Setenv("RETRY_MAX_ATTEMPTS", "not-a-number")
	t.Setenv("RETRY_BACKOFF_BASE", "0.5")
	t.Setenv("APP_ENV", "Production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.WorkerConcurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryInitialBackoff)
	assert.Equal(t, 5, cfg.RetryMaxAttempts)
	assert.Equal(t, 2.0, cfg.RetryBackoffBase)
	assert.True(t, cfg.IsProduction())
}

func TestValidateBlobBackends(t *testing.T) {
	cfg := &Config{BlobBackend: BlobBackendMinio, UploadBucket: "b"}
	assert.Error(t, cfg.Validate())

	cfg.S3Endpoint = "localhost:9000"
	assert.Error(t, cfg.Validate())

	cfg.S3AccessKey, cfg.S3SecretKey = "key", "secret"
	assert.NoError(t, cfg.Validate())

	cfg.BlobBackend = "ftp"
	assert.Error(t, cfg.Validate())

	cfg = &Config{BlobBackend: BlobBackendS3, S3AccessKey: "k", S3SecretKey: "s", UploadBucket: "b"}
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	clearEnv(t)
	t.Setenv("BLOB_BACKEND", "floppy")

	_, err := Load()
	assert.Error(t, err)
}
