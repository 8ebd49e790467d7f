// Package app assembles the stores, clients and services shared by the
// binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/vaultindex/internal/config"
	"github.com/dharsanguruparan/vaultindex/internal/database"
	"github.com/dharsanguruparan/vaultindex/internal/events"
	"github.com/dharsanguruparan/vaultindex/internal/index"
	"github.com/dharsanguruparan/vaultindex/internal/ingest"
	"github.com/dharsanguruparan/vaultindex/internal/ocr"
	"github.com/dharsanguruparan/vaultindex/internal/projects"
	"github.com/dharsanguruparan/vaultindex/internal/queue"
	"github.com/dharsanguruparan/vaultindex/internal/repository"
	"github.com/dharsanguruparan/vaultindex/internal/s3storage"
	"github.com/dharsanguruparan/vaultindex/internal/signing"
	"github.com/dharsanguruparan/vaultindex/internal/storage"
	"github.com/dharsanguruparan/vaultindex/internal/worker"
)

// App holds the wired services. Local is set when tasks run in process,
// Signer when the API serves presigned uploads itself.
type App struct {
	Config   *config.Config
	Log      *zap.Logger
	Pool     *pgxpool.Pool
	Blobs    s3storage.Blobs
	Index    *index.Store
	Ingest   *ingest.Service
	Projects *projects.Service
	Local    *queue.LocalEnqueuer
	Signer   *signing.Signer

	closers []func()
}

// New connects every backend selected by cfg. Postgres is used when
// DatabaseURL is set, asynq when RedisAddr is set; otherwise records stay in
// memory and tasks run on a local pool that Start launches.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	var (
		docs         ingest.DocumentStore
		uploads      ingest.UploadStore
		projectStore projects.Store
	)
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.Pool = pool
		a.closers = append(a.closers, pool.Close)
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		docs = repository.NewDocumentRepository(pool)
		uploads = repository.NewUploadRepository(pool)
		projectStore = repository.NewProjectRepository(pool)
		log.Info("using postgres stores")
	} else {
		docs = storage.NewDocumentStore()
		uploads = storage.NewUploadStore()
		projectStore = storage.NewProjectStore()
		log.Warn("DATABASE_URL not set, records are kept in memory")
	}

	a.Blobs, err = s3storage.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	if mem, ok := a.Blobs.(*storage.BlobStore); ok && cfg.SigningSecret != "" {
		a.Signer = signing.NewSigner([]byte(cfg.SigningSecret))
		mem.SetPresigner(func(ref string, ttl time.Duration) (string, error) {
			return a.Signer.UploadURL(cfg.PublicURL, ref, ttl)
		})
	}

	a.Index, err = index.Open(cfg.IndexPath, log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = a.Index.Close() })

	var publisher events.Publisher = events.Nop{}
	if cfg.NatsURL != "" {
		nats, err := events.NewNATSPublisher(ctx, cfg.NatsURL, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, nats.Close)
		publisher = nats
	}

	policy := RetryPolicy(cfg)
	var q queue.Enqueuer
	if cfg.RedisAddr != "" {
		client := asynq.NewClient(RedisOpt(cfg))
		a.closers = append(a.closers, func() { _ = client.Close() })
		q = queue.NewAsynqEnqueuer(client, policy)
	} else {
		a.Local = queue.NewLocalEnqueuer(cfg.WorkerConcurrency, policy, log)
		q = a.Local
	}

	a.Ingest = ingest.New(ingest.Deps{
		Documents: docs,
		Uploads:   uploads,
		Projects:  projectStore,
		Blobs:     a.Blobs,
		OCR:       ocr.NewClient(a.Blobs, log),
		Index:     a.Index,
		Events:    publisher,
		Queue:     q,
		Log:       log,
	}, ingest.Options{
		UploadURLTTL:        cfg.UploadURLTTL,
		RecoveryConcurrency: cfg.RecoveryConcurrency,
		RecoveryMinAge:      cfg.RecoveryMinAge,
		ProjectCacheTTL:     cfg.ProjectCacheTTL,
	})
	a.Projects = projects.NewService(projectStore, a.Index, log)

	if a.Local != nil {
		worker.NewProcessor(a.Ingest, log).Register(a.Local)
	}
	return a, nil
}

// Start launches the local task pool, if any.
func (a *App) Start(ctx context.Context) {
	if a.Local != nil {
		a.Local.Start(ctx)
	}
}

// Close drains the local pool and releases connections in reverse order.
func (a *App) Close() {
	if a.Local != nil {
		a.Local.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func RetryPolicy(cfg *config.Config) queue.RetryPolicy {
	return queue.RetryPolicy{
		MaxAttempts:    cfg.RetryMaxAttempts,
		InitialBackoff: cfg.RetryInitialBackoff,
		Base:           cfg.RetryBackoffBase,
	}
}

func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}
