// Package config reads the service configuration from the environment (and an
// optional .env file) into typed values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Blob backends understood by BlobBackend.
const (
	BlobBackendMinio  = "minio"
	BlobBackendS3     = "s3"
	BlobBackendMemory = "memory"
)

// Config represents runtime configuration for the server, the worker and the
// operations CLI.
type Config struct {
	Address     string
	Environment string
	LogFilePath string

	// DatabaseURL selects the Postgres stores; empty keeps records in memory.
	DatabaseURL string

	// RedisAddr selects the asynq queue; empty runs tasks in process.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BlobBackend  string
	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
	S3Region     string
	S3UseSSL     bool
	UploadBucket string
	UploadURLTTL time.Duration
	MaxFileSize  int64
	// SigningSecret enables presigned uploads through the API for the
	// memory backend; PublicURL is the base those URLs point at.
	SigningSecret string
	PublicURL     string

	// IndexPath is the badger directory; empty keeps the index in memory.
	IndexPath string
	NatsURL   string

	WorkerConcurrency   int
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryBackoffBase    float64

	RecoveryConcurrency int
	RecoveryMinAge      time.Duration
	ProjectCacheTTL     time.Duration
	// RecoverOnStart runs one stuck-document sweep when the server boots.
	RecoverOnStart bool
}

const (
	defaultAddress          = ":8080"
	defaultLogFile          = "logs/vaultindex.log"
	defaultMaxFileSize      = 50 << 20 // 50 MiB
	defaultUploadTTL        = 15 * time.Minute
	defaultBucket           = "vaultindex-uploads"
	defaultRegion           = "us-east-1"
	defaultWorkerCount      = 4
	defaultRetryAttempts    = 5
	defaultRetryBackoff     = time.Second
	defaultRetryBase        = 2.0
	defaultRecoveryWorkers  = 4
	defaultProjectCacheTTL  = 5 * time.Minute
	defaultRedisDB          = 0
	defaultBlobBackendLocal = BlobBackendMemory
)

// Load reads .env (when present) and the process environment, falling back to
// defaults for anything unset or unparsable.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg := &Config{
		Address:     readEnv("VAULTINDEX_ADDRESS", defaultAddress),
		Environment: readEnv("APP_ENV", "development"),
		LogFilePath: readEnv("LOG_FILE_PATH", defaultLogFile),

		DatabaseURL: readEnv("DATABASE_URL", ""),

		RedisAddr:     readEnv("REDIS_ADDR", ""),
		RedisPassword: readEnv("REDIS_PASSWORD", ""),
		RedisDB:       parseInt("REDIS_DB", defaultRedisDB),

		BlobBackend:  strings.ToLower(readEnv("BLOB_BACKEND", defaultBlobBackendLocal)),
		S3Endpoint:   readEnv("S3_ENDPOINT", ""),
		S3AccessKey:  readEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:  readEnv("S3_SECRET_KEY", ""),
		S3Region:     readEnv("S3_REGION", defaultRegion),
		S3UseSSL:     parseBool("S3_USE_SSL", false),
		UploadBucket: readEnv("UPLOAD_BUCKET", defaultBucket),
		UploadURLTTL: parseDuration("UPLOAD_URL_TTL", defaultUploadTTL),
		MaxFileSize:  parseInt64("MAX_FILE_BYTES", defaultMaxFileSize),

		SigningSecret: readEnv("UPLOAD_SIGNING_SECRET", ""),
		PublicURL:     readEnv("PUBLIC_BASE_URL", "http://localhost"+defaultAddress),

		IndexPath: readEnv("INDEX_PATH", ""),
		NatsURL:   readEnv("NATS_URL", ""),

		WorkerConcurrency:   parseInt("WORKER_CONCURRENCY", defaultWorkerCount),
		RetryMaxAttempts:    parseInt("RETRY_MAX_ATTEMPTS", defaultRetryAttempts),
		RetryInitialBackoff: parseDuration("RETRY_INITIAL_BACKOFF", defaultRetryBackoff),
		RetryBackoffBase:    parseFloat("RETRY_BACKOFF_BASE", defaultRetryBase),

		RecoveryConcurrency: parseInt("RECOVERY_CONCURRENCY", defaultRecoveryWorkers),
		RecoveryMinAge:      parseDuration("RECOVERY_MIN_AGE", 0),
		ProjectCacheTTL:     parseDuration("PROJECT_CACHE_TTL", defaultProjectCacheTTL),
		RecoverOnStart:      parseBool("RECOVER_ON_START", false),
	}
	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = defaultWorkerCount
	}
	if cfg.RetryMaxAttempts <= 0 {
		cfg.RetryMaxAttempts = defaultRetryAttempts
	}
	if cfg.RetryInitialBackoff <= 0 {
		cfg.RetryInitialBackoff = defaultRetryBackoff
	}
	if cfg.RetryBackoffBase < 1 {
		cfg.RetryBackoffBase = defaultRetryBase
	}
	if cfg.RecoveryConcurrency <= 0 {
		cfg.RecoveryConcurrency = defaultRecoveryWorkers
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.UploadURLTTL <= 0 {
		cfg.UploadURLTTL = defaultUploadTTL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports combinations that cannot work together.
func (c *Config) Validate() error {
	switch c.BlobBackend {
	case BlobBackendMemory:
	case BlobBackendMinio:
		if c.S3Endpoint == "" {
			return errors.New("config: S3_ENDPOINT is required for the minio backend")
		}
		fallthrough
	case BlobBackendS3:
		if c.S3AccessKey == "" || c.S3SecretKey == "" {
			return fmt.Errorf("config: S3 credentials are required for the %s backend", c.BlobBackend)
		}
		if c.UploadBucket == "" {
			return errors.New("config: UPLOAD_BUCKET is required")
		}
	default:
		return fmt.Errorf("config: unknown BLOB_BACKEND %q", c.BlobBackend)
	}
	if c.RecoveryMinAge < 0 {
		return errors.New("config: RECOVERY_MIN_AGE must not be negative")
	}
	return nil
}

// IsProduction reports whether logs should be JSON on the console too.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	// time.ParseDuration understands inputs like "5m" or "30s".
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
