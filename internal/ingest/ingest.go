package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/vaultindex/internal/events"
	"github.com/dharsanguruparan/vaultindex/internal/index"
	"github.com/dharsanguruparan/vaultindex/internal/model"
	"github.com/dharsanguruparan/vaultindex/internal/ocr"
	"github.com/dharsanguruparan/vaultindex/internal/textnorm"
)

// Index entry metadata keys written on add.
const (
	MetaDocumentID     = "documentId"
	MetaFilename       = "filename"
	MetaScope          = "scope"
	MetaProjectID      = "projectId"
	MetaDocumentNumber = "documentNumber"
)

// Request is one ingestion. With a BlobRef the text is extracted from the
// blob and Text is ignored.
type Request struct {
	Scope          model.Scope `validate:"required,oneof=global project"`
	ProjectID      string      `validate:"required_if=Scope project"`
	Filename       string      `validate:"required"`
	Title          string
	Text           string
	BlobRef        string
	MimeType       string
	DocumentNumber string
	Tags           []string
}

// Result reports the terminal state written for the request. Err is the
// failure behind an error status, kept so the queue can decide on a retry.
// Superseded is set when a newer run or a deletion claimed the record first.
type Result struct {
	DocumentID string
	Status     model.Status
	EntryID    string
	Err        error
	Superseded bool
}

// Ingest runs the pipeline for req. The returned error is non-nil only when
// no record could be prepared; every later failure is written to the record
// and repeated in Result.Err.
func (s *Service) Ingest(ctx context.Context, req Request) (Result, error) {
	if err := s.validate.Struct(req); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	filename := textnorm.CanonicalFilename(req.Filename)
	if req.Title == "" {
		req.Title = strings.TrimSpace(req.Filename)
	}
	if req.Scope == model.ScopeGlobal {
		req.ProjectID = ""
	}
	var meta *model.Metadata
	if req.BlobRef != "" {
		meta = &model.Metadata{BlobRef: req.BlobRef, MimeType: req.MimeType}
	}
	claim, err := s.docs.Prepare(ctx, model.PrepareParams{
		Scope:          req.Scope,
		ProjectID:      req.ProjectID,
		Filename:       filename,
		Title:          req.Title,
		DocumentNumber: req.DocumentNumber,
		Tags:           req.Tags,
		Metadata:       meta,
	})
	if err != nil {
		return Result{}, fmt.Errorf("prepare document: %w", err)
	}
	log := s.log.With(zap.String("documentId", claim.DocumentID), zap.String("filename", filename))
	return s.run(ctx, claim, req, filename, log), nil
}

func (s *Service) run(ctx context.Context, claim model.Claim, req Request, filename string, log *zap.Logger) Result {
	outcome, runErr := s.index(ctx, claim, req, filename, log)
	if runErr != nil {
		log.Warn("ingestion failed", zap.Error(runErr), zap.Bool("retryable", Retryable(runErr)))
		outcome = model.Failed(runErr.Error())
	}
	res := Result{
		DocumentID: claim.DocumentID,
		Status:     outcome.Status(),
		EntryID:    outcome.EntryID(),
		Err:        runErr,
	}

	if err := s.docs.Finalize(ctx, claim, outcome); err != nil {
		if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrStaleAttempt) {
			log.Info("finalize skipped, record superseded", zap.Error(err))
			return Result{DocumentID: claim.DocumentID, Status: outcome.Status(), Superseded: true}
		}
		// The record stays in processing; recovery or a retry finishes it.
		log.Error("finalize failed", zap.Error(err))
		res.Status = model.StatusProcessing
		res.Err = fmt.Errorf("finalize document: %w", err)
		return res
	}
	log.Info("document finalized", zap.String("status", string(outcome.Status())), zap.String("entryId", outcome.EntryID()))

	if outcome.Status() == model.StatusDuplicate && req.BlobRef != "" {
		_ = softFail(log, "delete duplicate blob", func() error {
			return s.blobs.Delete(ctx, req.BlobRef)
		})
	}
	if prev := claim.PreviousEntryID; prev != "" && prev != outcome.EntryID() {
		_ = softFail(log, "release previous entry", func() error {
			return s.releaseEntry(ctx, prev, claim.DocumentID)
		})
	}
	_ = softFail(log, "publish event", func() error {
		return s.events.Publish(ctx, events.Event{
			Type:         events.ForStatus(outcome.Status()),
			DocumentID:   claim.DocumentID,
			Scope:        req.Scope,
			ProjectID:    req.ProjectID,
			Filename:     filename,
			Status:       outcome.Status(),
			IndexEntryID: outcome.EntryID(),
			Error:        outcome.Message(),
			OccurredAt:   s.now(),
		})
	})
	return res
}

// index resolves the text and namespace and adds the content. A non-nil
// error becomes the record's error message.
func (s *Service) index(ctx context.Context, claim model.Claim, req Request, filename string, log *zap.Logger) (model.Outcome, error) {
	text, err := s.text(ctx, req)
	if err != nil {
		return model.Outcome{}, err
	}
	namespace, err := s.namespace(ctx, req.Scope, req.ProjectID)
	if err != nil {
		return model.Outcome{}, err
	}
	normalized := textnorm.Normalize(text)
	if normalized == "" {
		return model.Outcome{}, ErrNoText
	}
	fingerprint := textnorm.Fingerprint(normalized)
	log = log.With(zap.String("namespace", namespace), zap.String("fingerprint", fingerprint))

	added, err := s.idx.Add(ctx, index.AddRequest{
		Namespace:   namespace,
		Text:        text,
		Key:         filename,
		Title:       req.Title,
		Fingerprint: fingerprint,
		Metadata: map[string]string{
			MetaDocumentID:     claim.DocumentID,
			MetaFilename:       filename,
			MetaScope:          string(req.Scope),
			MetaProjectID:      req.ProjectID,
			MetaDocumentNumber: req.DocumentNumber,
		},
	})
	if err != nil {
		return model.Outcome{}, fmt.Errorf("index add: %w", err)
	}
	if added.Created || ownsEntry(claim, added) {
		log.Debug("content indexed", zap.String("entryId", added.EntryID), zap.Bool("created", added.Created))
		return model.Done(added.EntryID), nil
	}
	log.Info("duplicate content", zap.String("entryId", added.EntryID),
		zap.String("ownerId", added.Entry.Metadata[MetaDocumentID]))
	return model.Duplicate(added.EntryID), nil
}

// text returns the content to index: OCR output for blobs, the supplied text
// otherwise.
func (s *Service) text(ctx context.Context, req Request) (string, error) {
	if req.BlobRef == "" {
		return req.Text, nil
	}
	if !ocr.IsPDF(req.MimeType) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.MimeType)
	}
	text, err := s.ocr.Extract(ctx, req.BlobRef, req.MimeType)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) {
			return "", err
		}
		return "", fmt.Errorf("ocr extract: %w", err)
	}
	if strings.TrimSpace(text) != "" {
		return text, nil
	}
	// The extractor reports a missing blob as empty text.
	exists, err := s.blobs.Exists(ctx, req.BlobRef)
	if err != nil {
		return "", fmt.Errorf("check blob: %w", err)
	}
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrMissingBlob, req.BlobRef)
	}
	return "", ErrNoText
}

// ownsEntry reports whether an existing entry already belongs to this
// document: either the record pointed at it before this run, or an earlier
// attempt added it and crashed before finalizing.
func ownsEntry(claim model.Claim, added index.AddResult) bool {
	if claim.PreviousEntryID != "" && added.EntryID == claim.PreviousEntryID {
		return true
	}
	return added.Entry.Metadata[MetaDocumentID] == claim.DocumentID
}

// releaseEntry deletes entryID from the index unless another record still
// references it.
func (s *Service) releaseEntry(ctx context.Context, entryID, documentID string) error {
	n, err := s.docs.CountByIndexEntry(ctx, entryID, documentID)
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Debug("index entry still referenced", zap.String("entryId", entryID), zap.Int("refs", n))
		return nil
	}
	return s.idx.Delete(ctx, entryID)
}
