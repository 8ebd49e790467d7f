package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/vaultindex/internal/ingest"
	"github.com/dharsanguruparan/vaultindex/internal/model"
	"github.com/dharsanguruparan/vaultindex/internal/ocr"
)

type filePart struct {
	filename    string
	contentType string
	data        []byte
}

// handleFileUpload accepts a multipart form with a "file" part plus the
// upload fields, stores the blob and registers it like a presigned upload.
func (s *Server) handleFileUpload(w http.ResponseWriter, r *http.Request) {
	if s.blobs == nil {
		s.respondError(w, r, badRequest("direct uploads are disabled"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+64<<10)
	mr, err := r.MultipartReader()
	if err != nil {
		s.respondError(w, r, badRequest("expecting multipart form"))
		return
	}
	fields, file, err := s.readForm(mr)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if !ocr.IsPDF(file.contentType) {
		s.respondError(w, r, badRequest("only PDF files supported"))
		return
	}

	ref := fmt.Sprintf("uploads/%s/%s", uuid.NewString(), path.Base(strings.ReplaceAll(file.filename, "\\", "/")))
	if err := s.blobs.Put(r.Context(), ref, file.data, file.contentType); err != nil {
		s.respondError(w, r, fmt.Errorf("store upload: %w", err))
		return
	}
	s.log.Info("file stored", zap.String("blobRef", ref), zap.Int("bytes", len(file.data)))

	receipt, err := s.pipeline.RegisterUpload(r.Context(), ingest.UploadRequest{
		BlobRef:        ref,
		Filename:       file.filename,
		Title:          fields["title"],
		MimeType:       file.contentType,
		Scope:          model.Scope(fields["scope"]),
		ProjectID:      fields["projectId"],
		DocumentNumber: fields["documentNumber"],
		Tags:           splitTags(fields["tags"]),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, receipt)
}

// readForm walks every part; the file may come before or after the fields.
func (s *Server) readForm(mr *multipart.Reader) (map[string]string, *filePart, error) {
	fields := map[string]string{}
	var file *filePart
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, badRequest("read multipart: " + err.Error())
		}
		if part.FormName() == "file" {
			file, err = s.readFile(part)
		} else {
			var b []byte
			b, err = io.ReadAll(io.LimitReader(part, 64<<10))
			fields[part.FormName()] = strings.TrimSpace(string(b))
		}
		part.Close()
		if err != nil {
			return nil, nil, err
		}
	}
	if file == nil {
		return nil, nil, badRequest("missing file part")
	}
	return fields, file, nil
}

func (s *Server) readFile(part *multipart.Part) (*filePart, error) {
	filename := part.FileName()
	if filename == "" {
		return nil, badRequest("file part has no filename")
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(part, s.cfg.MaxFileSize+1))
	if err != nil {
		return nil, badRequest("read file: " + err.Error())
	}
	if n > s.cfg.MaxFileSize {
		return nil, badRequest("file exceeds size limit")
	}
	data := buf.Bytes()
	sniff := data
	if len(sniff) > 512 {
		sniff = sniff[:512]
	}
	return &filePart{
		filename:    filename,
		contentType: http.DetectContentType(sniff),
		data:        data,
	}, nil
}

// handlePutBlob is the target of presigned URLs when the API fronts the
// memory blob store.
func (s *Server) handlePutBlob(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimPrefix(r.URL.Path, "/blobs/")
	if ref == "" {
		s.respondError(w, r, badRequest("object key is required"))
		return
	}
	if err := s.signer.Verify(r.URL.Query().Get("token"), ref); err != nil {
		respondJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize))
	if err != nil {
		s.respondError(w, r, badRequest("read body: "+err.Error()))
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if err := s.blobs.Put(r.Context(), ref, data, contentType); err != nil {
		s.respondError(w, r, fmt.Errorf("store blob: %w", err))
		return
	}
	w.WriteHeader(http.StatusOK)
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
