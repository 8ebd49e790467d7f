package ingest

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/vaultindex/internal/model"
	"github.com/dharsanguruparan/vaultindex/internal/queue"
	"github.com/dharsanguruparan/vaultindex/internal/textnorm"
)

// UploadRequest registers a blob that the client already put into storage.
type UploadRequest struct {
	BlobRef        string      `json:"blobRef" validate:"required"`
	Filename       string      `json:"filename" validate:"required"`
	Title          string      `json:"title"`
	MimeType       string      `json:"mimeType"`
	Scope          model.Scope `json:"scope" validate:"required,oneof=global project"`
	ProjectID      string      `json:"projectId" validate:"required_if=Scope project"`
	DocumentNumber string      `json:"documentNumber"`
	Tags           []string    `json:"tags"`
}

type UploadReceipt struct {
	UploadID   string       `json:"uploadId"`
	DocumentID string       `json:"documentId"`
	Status     model.Status `json:"status"`
}

// UploadURL is a presigned PUT target.
type UploadURL struct {
	URL       string    `json:"url"`
	BlobRef   string    `json:"blobRef"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RegisterUpload records the upload, moves the matching document record back
// to processing and queues the pipeline run.
func (s *Service) RegisterUpload(ctx context.Context, req UploadRequest) (UploadReceipt, error) {
	if err := s.validate.Struct(req); err != nil {
		return UploadReceipt{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Scope == model.ScopeGlobal {
		req.ProjectID = ""
	}
	if req.Title == "" {
		req.Title = strings.TrimSpace(req.Filename)
	}
	claim, err := s.docs.Prepare(ctx, model.PrepareParams{
		Scope:          req.Scope,
		ProjectID:      req.ProjectID,
		Filename:       textnorm.CanonicalFilename(req.Filename),
		Title:          req.Title,
		DocumentNumber: req.DocumentNumber,
		Tags:           req.Tags,
		Metadata:       &model.Metadata{BlobRef: req.BlobRef, MimeType: req.MimeType},
	})
	if err != nil {
		return UploadReceipt{}, fmt.Errorf("prepare document: %w", err)
	}

	up := &model.Upload{
		ID:             uuid.NewString(),
		BlobRef:        req.BlobRef,
		Filename:       req.Filename,
		Title:          req.Title,
		MimeType:       req.MimeType,
		Scope:          req.Scope,
		ProjectID:      req.ProjectID,
		DocumentID:     claim.DocumentID,
		Status:         model.StatusPending,
		DocumentNumber: req.DocumentNumber,
		Tags:           req.Tags,
	}
	if err := s.uploads.Create(ctx, up); err != nil {
		return UploadReceipt{}, fmt.Errorf("create upload: %w", err)
	}
	log := s.log.With(zap.String("uploadId", up.ID), zap.String("documentId", claim.DocumentID))

	task, err := queue.NewTask(queue.TypeProcessUpload, up.ID, queue.ProcessUploadPayload{UploadID: up.ID})
	if err == nil {
		err = s.enqueue(ctx, task)
	}
	if err != nil {
		// The document stays in processing, so recovery can still pick it up.
		log.Error("enqueue upload failed", zap.Error(err))
		_ = softFail(log, "mark upload failed", func() error {
			return s.uploads.SetStatus(ctx, up.ID, model.StatusError, err.Error())
		})
		return UploadReceipt{}, fmt.Errorf("enqueue upload: %w", err)
	}
	log.Info("upload registered", zap.String("blobRef", req.BlobRef))
	return UploadReceipt{UploadID: up.ID, DocumentID: claim.DocumentID, Status: model.StatusPending}, nil
}

// ProcessUpload is the queue body for upload:process. It mirrors the document
// outcome onto the upload and returns an error only when a retry could help.
func (s *Service) ProcessUpload(ctx context.Context, uploadID string) error {
	up, err := s.uploads.Get(ctx, uploadID)
	if errors.Is(err, model.ErrNotFound) {
		return queue.Permanent(fmt.Errorf("upload %s: %w", uploadID, err))
	}
	if err != nil {
		return fmt.Errorf("load upload: %w", err)
	}
	if up.Status == model.StatusDone {
		return nil
	}
	log := s.log.With(zap.String("uploadId", up.ID))
	if err := s.uploads.SetStatus(ctx, up.ID, model.StatusProcessing, ""); err != nil {
		return fmt.Errorf("mark upload processing: %w", err)
	}

	res, err := s.Ingest(ctx, Request{
		Scope:          up.Scope,
		ProjectID:      up.ProjectID,
		Filename:       up.Filename,
		Title:          up.Title,
		BlobRef:        up.BlobRef,
		MimeType:       up.MimeType,
		DocumentNumber: up.DocumentNumber,
		Tags:           up.Tags,
	})
	if err != nil {
		_ = softFail(log, "mark upload failed", func() error {
			return s.uploads.SetStatus(ctx, up.ID, model.StatusError, err.Error())
		})
		if errors.Is(err, ErrInvalidRequest) {
			return queue.Permanent(err)
		}
		return err
	}

	switch {
	case res.Superseded:
		err = s.uploads.SetStatus(ctx, up.ID, model.StatusError, "superseded by a newer upload or deletion")
	case res.Status == model.StatusDone || res.Status == model.StatusDuplicate:
		err = s.uploads.SetStatus(ctx, up.ID, model.StatusDone, "")
	case res.Err != nil:
		err = s.uploads.SetStatus(ctx, up.ID, model.StatusError, res.Err.Error())
	}
	if err != nil {
		log.Warn("update upload status failed", zap.Error(err))
	}

	if res.Err == nil {
		return nil
	}
	if !Retryable(res.Err) {
		return queue.Permanent(res.Err)
	}
	return res.Err
}

// SubmitText validates req and queues it as a document:ingest task.
func (s *Service) SubmitText(ctx context.Context, req Request) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	payload := queue.IngestTextPayload{
		Scope:          string(req.Scope),
		ProjectID:      req.ProjectID,
		Filename:       req.Filename,
		Title:          req.Title,
		Text:           req.Text,
		DocumentNumber: req.DocumentNumber,
		Tags:           req.Tags,
	}
	task, err := queue.NewTask(queue.TypeIngestDocument, "", payload)
	if err != nil {
		return err
	}
	s.log.Debug("queueing text ingestion", zap.String("filename", req.Filename))
	return s.enqueue(ctx, task)
}

// GenerateUploadURL reserves an object key for filename and presigns a PUT.
func (s *Service) GenerateUploadURL(ctx context.Context, filename string) (UploadURL, error) {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if base == "" || base == "." || base == "/" {
		return UploadURL{}, fmt.Errorf("%w: filename is required", ErrInvalidRequest)
	}
	ref := fmt.Sprintf("uploads/%s/%s", uuid.NewString(), base)
	url, err := s.blobs.PresignUpload(ctx, ref, s.opts.UploadURLTTL)
	if err != nil {
		return UploadURL{}, fmt.Errorf("presign upload: %w", err)
	}
	return UploadURL{URL: url, BlobRef: ref, ExpiresAt: s.now().Add(s.opts.UploadURLTTL)}, nil
}

func (s *Service) enqueue(ctx context.Context, task queue.Task) error {
	if s.queue == nil {
		return ErrNoQueue
	}
	return s.queue.Enqueue(ctx, task)
}
