package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dharsanguruparan/vaultindex/internal/index"
	"github.com/dharsanguruparan/vaultindex/internal/ingest"
	"github.com/dharsanguruparan/vaultindex/internal/model"
	"github.com/dharsanguruparan/vaultindex/internal/projects"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type uploadURLRequest struct {
	Filename string `json:"filename"`
}

func (s *Server) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	var req uploadURLRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		s.respondError(w, r, badRequest("filename is required"))
		return
	}
	out, err := s.pipeline.GenerateUploadURL(r.Context(), req.Filename)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleRegisterUpload(w http.ResponseWriter, r *http.Request) {
	var req ingest.UploadRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	receipt, err := s.pipeline.RegisterUpload(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, receipt)
}

func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	q := r.URL.Query()
	uploads, err := s.pipeline.Uploads(r.Context(), model.UploadFilter{
		ProjectID: q.Get("projectId"),
		Status:    model.Status(q.Get("status")),
		Limit:     limit,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"uploads": uploads})
}

// documentRequest submits raw text. Async queues the run instead of waiting
// for the terminal status.
type documentRequest struct {
	Scope          model.Scope `json:"scope"`
	ProjectID      string      `json:"projectId"`
	Filename       string      `json:"filename"`
	Title          string      `json:"title"`
	Text           string      `json:"text"`
	DocumentNumber string      `json:"documentNumber"`
	Tags           []string    `json:"tags"`
	Async          bool        `json:"async"`
}

type documentResult struct {
	DocumentID   string       `json:"documentId"`
	Status       model.Status `json:"status"`
	IndexEntryID string       `json:"indexEntryId,omitempty"`
	Error        string       `json:"error,omitempty"`
	Superseded   bool         `json:"superseded,omitempty"`
}

func (s *Server) handleSubmitDocument(w http.ResponseWriter, r *http.Request) {
	var body documentRequest
	if err := decodeJSON(r, &body); err != nil {
		s.respondError(w, r, err)
		return
	}
	req := ingest.Request{
		Scope:          body.Scope,
		ProjectID:      body.ProjectID,
		Filename:       body.Filename,
		Title:          body.Title,
		Text:           body.Text,
		DocumentNumber: body.DocumentNumber,
		Tags:           body.Tags,
	}
	if body.Async {
		if err := s.pipeline.SubmitText(r.Context(), req); err != nil {
			s.respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]string{"status": string(model.StatusPending)})
		return
	}
	res, err := s.pipeline.Ingest(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	out := documentResult{
		DocumentID:   res.DocumentID,
		Status:       res.Status,
		IndexEntryID: res.EntryID,
		Superseded:   res.Superseded,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	q := r.URL.Query()
	scope := model.Scope(q.Get("scope"))
	if scope != "" && !scope.Valid() {
		s.respondError(w, r, badRequest("unknown scope "+string(scope)))
		return
	}
	docs, err := s.pipeline.Documents(r.Context(), model.DocumentFilter{
		Scope:     scope,
		ProjectID: q.Get("projectId"),
		Status:    model.Status(q.Get("status")),
		Limit:     limit,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.pipeline.Document(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.DeleteDocument(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var in projects.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		s.respondError(w, r, err)
		return
	}
	p, err := s.projects.Create(r.Context(), in)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// handleIndexProject retries the descriptor indexing of a project whose
// namespace is still missing.
func (s *Server) handleIndexProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.projects.EnsureIndexed(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	list, err := s.projects.List(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"projects": list})
}

func (s *Server) handleFixStuck(w http.ResponseWriter, r *http.Request) {
	report, err := s.pipeline.FixStuckDocuments(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// handleSearch queries one namespace. projectId resolves to the project's
// namespace and wins over an explicit namespace.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		s.respondError(w, r, badRequest("q is required"))
		return
	}
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	namespace := q.Get("namespace")
	if namespace == "" {
		namespace = index.GlobalNamespace
	}
	if id := q.Get("projectId"); id != "" {
		p, err := s.projects.Get(r.Context(), id)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		if p.IndexEntryID == "" {
			respondJSON(w, http.StatusOK, index.SearchResponse{Results: []index.SearchResult{}})
			return
		}
		namespace = p.IndexEntryID
	}
	resp, err := s.search.Search(r.Context(), index.SearchRequest{
		Namespace: namespace,
		Query:     query,
		Limit:     limit,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
