// Package api exposes the internal HTTP surface: upload registration,
// document status, deletion, recovery and index search.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/vaultindex/internal/config"
	"github.com/dharsanguruparan/vaultindex/internal/index"
	"github.com/dharsanguruparan/vaultindex/internal/ingest"
	"github.com/dharsanguruparan/vaultindex/internal/model"
	"github.com/dharsanguruparan/vaultindex/internal/projects"
)

// Pipeline is the ingest service as seen by the handlers.
type Pipeline interface {
	RegisterUpload(ctx context.Context, req ingest.UploadRequest) (ingest.UploadReceipt, error)
	GenerateUploadURL(ctx context.Context, filename string) (ingest.UploadURL, error)
	Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error)
	SubmitText(ctx context.Context, req ingest.Request) error
	Document(ctx context.Context, id string) (*model.Document, error)
	Documents(ctx context.Context, f model.DocumentFilter) ([]model.Document, error)
	Uploads(ctx context.Context, f model.UploadFilter) ([]model.Upload, error)
	DeleteDocument(ctx context.Context, id string) error
	FixStuckDocuments(ctx context.Context) (ingest.RecoveryReport, error)
}

type Projects interface {
	Create(ctx context.Context, in projects.CreateInput) (*model.Project, error)
	Get(ctx context.Context, id string) (*model.Project, error)
	List(ctx context.Context) ([]model.Project, error)
	EnsureIndexed(ctx context.Context, id string) (*model.Project, error)
}

type Searcher interface {
	Search(ctx context.Context, req index.SearchRequest) (index.SearchResponse, error)
}

// BlobWriter stores files posted directly to the API.
type BlobWriter interface {
	Put(ctx context.Context, ref string, data []byte, contentType string) error
}

// TokenVerifier checks presigned upload tokens.
type TokenVerifier interface {
	Verify(token, ref string) error
}

// Deps are the services behind the handlers. Blobs and Signer are optional:
// without Blobs direct file uploads are refused, without Signer the blob
// route is not mounted.
type Deps struct {
	Pipeline Pipeline
	Projects Projects
	Search   Searcher
	Blobs    BlobWriter
	Signer   TokenVerifier
	Log      *zap.Logger
}

// Server hosts the HTTP handlers.
type Server struct {
	cfg      *config.Config
	pipeline Pipeline
	projects Projects
	search   Searcher
	blobs    BlobWriter
	signer   TokenVerifier
	log      *zap.Logger
	server   *http.Server
}

func New(cfg *config.Config, d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		pipeline: d.Pipeline,
		projects: d.Projects,
		search:   d.Search,
		blobs:    d.Blobs,
		signer:   d.Signer,
		log:      d.Log.With(zap.String("component", "api")),
	}
	s.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/uploads", func(r chi.Router) {
		r.Get("/", s.handleListUploads)
		r.Post("/", s.handleRegisterUpload)
		r.Post("/url", s.handleUploadURL)
		r.Post("/file", s.handleFileUpload)
	})
	r.Route("/documents", func(r chi.Router) {
		r.Get("/", s.handleListDocuments)
		r.Post("/", s.handleSubmitDocument)
		r.Get("/{id}", s.handleGetDocument)
		r.Delete("/{id}", s.handleDeleteDocument)
	})
	r.Route("/projects", func(r chi.Router) {
		r.Get("/", s.handleListProjects)
		r.Post("/", s.handleCreateProject)
		r.Post("/{id}/index", s.handleIndexProject)
	})
	r.Post("/maintenance/fix-stuck", s.handleFixStuck)
	r.Get("/search", s.handleSearch)
	if s.signer != nil && s.blobs != nil {
		r.Put("/blobs/*", s.handlePutBlob)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", zap.String("addr", s.cfg.Address))
		errCh <- s.server.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
