package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/vaultindex/internal/events"
	"github.com/dharsanguruparan/vaultindex/internal/model"
	"github.com/dharsanguruparan/vaultindex/internal/ocr"
)

// RecoveryReport summarizes one scan. Every scanned record counts as fixed,
// including the ones moved to error.
type RecoveryReport struct {
	Fixed  int      `json:"fixed"`
	Errors []string `json:"errors"`
}

// FixStuckDocuments re-drives every record still in processing. Records
// without a usable blob are failed; PDFs run the pipeline again under the
// scanned attempt. One record's failure never stops the scan.
func (s *Service) FixStuckDocuments(ctx context.Context) (RecoveryReport, error) {
	var cutoff time.Time
	if s.opts.RecoveryMinAge > 0 {
		cutoff = s.now().Add(-s.opts.RecoveryMinAge)
	}
	stuck, err := s.docs.ListByStatus(ctx, model.StatusProcessing, cutoff)
	if err != nil {
		return RecoveryReport{}, fmt.Errorf("list stuck documents: %w", err)
	}
	report := RecoveryReport{Errors: []string{}}
	if len(stuck) == 0 {
		return report, nil
	}
	s.log.Info("recovering stuck documents", zap.Int("count", len(stuck)))

	pool, err := ants.NewPool(s.opts.RecoveryConcurrency)
	if err != nil {
		return report, fmt.Errorf("create recovery pool: %w", err)
	}
	defer pool.Release()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	record := func(doc model.Document, err error) {
		mu.Lock()
		defer mu.Unlock()
		report.Fixed++
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s (%s): %v", doc.ID, doc.Filename, err))
		}
	}
	for i := range stuck {
		doc := stuck[i]
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			record(doc, s.recoverDocument(ctx, doc))
		})
		if err != nil {
			wg.Done()
			record(doc, fmt.Errorf("schedule recovery: %w", err))
		}
	}
	wg.Wait()

	sort.Strings(report.Errors)
	s.log.Info("recovery finished", zap.Int("fixed", report.Fixed), zap.Int("errors", len(report.Errors)))
	return report, nil
}

// recoverDocument resolves one stuck record. The returned error goes into the
// report. A record deleted or re-claimed since the scan is left alone.
func (s *Service) recoverDocument(ctx context.Context, doc model.Document) error {
	claim := model.Claim{DocumentID: doc.ID, Attempt: doc.Attempt, PreviousEntryID: doc.PreviousEntryID}
	log := s.log.With(zap.String("documentId", doc.ID), zap.String("filename", doc.Filename))

	ref := doc.Metadata.BlobRef
	if ref == "" {
		return s.failStuck(ctx, claim, doc, "no blob reference to recover from", log)
	}
	exists, err := s.blobs.Exists(ctx, ref)
	if err != nil {
		err = fmt.Errorf("check blob: %w", err)
		if ferr := s.failStuck(ctx, claim, doc, err.Error(), log); ferr != nil {
			return errors.Join(err, ferr)
		}
		return err
	}
	if !exists {
		return s.failStuck(ctx, claim, doc, ErrMissingBlob.Error(), log)
	}
	if !doc.HasPDFExtension() {
		return s.failStuck(ctx, claim, doc, ErrUnsupportedFormat.Error(), log)
	}

	claim, err = s.docs.Reclaim(ctx, claim)
	if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrStaleAttempt) {
		log.Info("stuck record changed during recovery", zap.Error(err))
		return nil
	}
	if err != nil {
		return fmt.Errorf("reclaim stuck document: %w", err)
	}

	mimeType := doc.Metadata.MimeType
	if !ocr.IsPDF(mimeType) {
		mimeType = "application/pdf"
	}
	res := s.run(ctx, claim, Request{
		Scope:          doc.Scope,
		ProjectID:      doc.ProjectID,
		Filename:       doc.Filename,
		Title:          doc.Title,
		BlobRef:        ref,
		MimeType:       mimeType,
		DocumentNumber: doc.DocumentNumber,
		Tags:           doc.Tags,
	}, doc.Filename, log)
	return res.Err
}

// failStuck finalizes a scanned record as error. A record that moved on since
// the scan is left alone.
func (s *Service) failStuck(ctx context.Context, claim model.Claim, doc model.Document, msg string, log *zap.Logger) error {
	err := s.docs.Finalize(ctx, claim, model.Failed(msg))
	if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrStaleAttempt) {
		log.Info("stuck record changed during recovery", zap.Error(err))
		return nil
	}
	if err != nil {
		return fmt.Errorf("finalize stuck document: %w", err)
	}
	log.Warn("stuck document failed", zap.String("reason", msg))
	_ = softFail(log, "publish event", func() error {
		return s.events.Publish(ctx, events.Event{
			Type:       events.TypeDocumentError,
			DocumentID: doc.ID,
			Scope:      doc.Scope,
			ProjectID:  doc.ProjectID,
			Filename:   doc.Filename,
			Status:     model.StatusError,
			Error:      msg,
			OccurredAt: s.now(),
		})
	})
	return nil
}
