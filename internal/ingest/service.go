// Package ingest turns uploads and submitted text into deduplicated index
// entries. Every run goes through the document record's prepare/finalize
// pair, so the record is the only place failures are reported.
package ingest

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/vaultindex/internal/events"
	"github.com/dharsanguruparan/vaultindex/internal/index"
	"github.com/dharsanguruparan/vaultindex/internal/model"
	"github.com/dharsanguruparan/vaultindex/internal/queue"
)

// DocumentStore is the document record state machine. Only Prepare, Reclaim
// and Finalize write status, error or entry id.
type DocumentStore interface {
	Prepare(ctx context.Context, p model.PrepareParams) (model.Claim, error)
	Finalize(ctx context.Context, claim model.Claim, outcome model.Outcome) error
	Reclaim(ctx context.Context, claim model.Claim) (model.Claim, error)
	Get(ctx context.Context, id string) (*model.Document, error)
	List(ctx context.Context, f model.DocumentFilter) ([]model.Document, error)
	ListByStatus(ctx context.Context, status model.Status, updatedBefore time.Time) ([]model.Document, error)
	CountByIndexEntry(ctx context.Context, entryID, excludeID string) (int, error)
	Delete(ctx context.Context, id string) error
}

type UploadStore interface {
	Create(ctx context.Context, up *model.Upload) error
	Get(ctx context.Context, id string) (*model.Upload, error)
	SetStatus(ctx context.Context, id string, status model.Status, msg string) error
	List(ctx context.Context, f model.UploadFilter) ([]model.Upload, error)
}

// ProjectLookup resolves a project to its index namespace.
type ProjectLookup interface {
	Get(ctx context.Context, id string) (*model.Project, error)
}

// BlobStore is the part of object storage the pipeline touches directly.
// Reads go through the TextExtractor.
type BlobStore interface {
	Exists(ctx context.Context, ref string) (bool, error)
	Delete(ctx context.Context, ref string) error
	PresignUpload(ctx context.Context, ref string, ttl time.Duration) (string, error)
}

// TextExtractor returns the text of a blob, or "" when the blob is gone.
type TextExtractor interface {
	Extract(ctx context.Context, ref, mimeType string) (string, error)
}

// Deps are the collaborators of a Service. Events and Queue may be nil.
type Deps struct {
	Documents DocumentStore
	Uploads   UploadStore
	Projects  ProjectLookup
	Blobs     BlobStore
	OCR       TextExtractor
	Index     index.Index
	Events    events.Publisher
	Queue     queue.Enqueuer
	Log       *zap.Logger
}

type Options struct {
	UploadURLTTL        time.Duration
	RecoveryConcurrency int
	// RecoveryMinAge skips processing records updated more recently; zero
	// scans all of them.
	RecoveryMinAge  time.Duration
	ProjectCacheTTL time.Duration
}

// Service is the ingestion orchestrator.
type Service struct {
	docs     DocumentStore
	uploads  UploadStore
	projects ProjectLookup
	blobs    BlobStore
	ocr      TextExtractor
	idx      index.Index
	events   events.Publisher
	queue    queue.Enqueuer
	log      *zap.Logger

	opts     Options
	validate *validator.Validate
	nsCache  *cache.Cache
	now      func() time.Time
}

// New wires a Service. Zero options fall back to the defaults used by
// cmd/server.
func New(d Deps, opts Options) *Service {
	if opts.UploadURLTTL <= 0 {
		opts.UploadURLTTL = 15 * time.Minute
	}
	if opts.RecoveryConcurrency <= 0 {
		opts.RecoveryConcurrency = 4
	}
	if opts.ProjectCacheTTL <= 0 {
		opts.ProjectCacheTTL = 5 * time.Minute
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	return &Service{
		docs:     d.Documents,
		uploads:  d.Uploads,
		projects: d.Projects,
		blobs:    d.Blobs,
		ocr:      d.OCR,
		idx:      d.Index,
		events:   d.Events,
		queue:    d.Queue,
		log:      d.Log.With(zap.String("component", "ingest")),
		opts:     opts,
		validate: validator.New(),
		nsCache:  cache.New(opts.ProjectCacheTTL, 2*opts.ProjectCacheTTL),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Document returns a record by id.
func (s *Service) Document(ctx context.Context, id string) (*model.Document, error) {
	return s.docs.Get(ctx, id)
}

func (s *Service) Documents(ctx context.Context, f model.DocumentFilter) ([]model.Document, error) {
	return s.docs.List(ctx, f)
}

func (s *Service) Uploads(ctx context.Context, f model.UploadFilter) ([]model.Upload, error) {
	return s.uploads.List(ctx, f)
}
