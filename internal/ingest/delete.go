package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/vaultindex/internal/events"
	"github.com/dharsanguruparan/vaultindex/internal/model"
)

// DeleteDocument removes a document together with its index entry and blob.
// Index and blob cleanup are best effort; the record is always removed.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return err
	}
	log := s.log.With(zap.String("documentId", doc.ID), zap.String("filename", doc.Filename))

	for _, entryID := range entryRefs(doc) {
		_ = softFail(log, "delete index entry", func() error {
			return s.releaseEntry(ctx, entryID, doc.ID)
		})
	}
	if ref := doc.Metadata.BlobRef; ref != "" {
		_ = softFail(log, "delete blob", func() error {
			return s.blobs.Delete(ctx, ref)
		})
	}
	if err := s.docs.Delete(ctx, doc.ID); err != nil && !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("delete document: %w", err)
	}
	log.Info("document deleted")

	_ = softFail(log, "publish event", func() error {
		return s.events.Publish(ctx, events.Event{
			Type:         events.TypeDocumentDeleted,
			DocumentID:   doc.ID,
			Scope:        doc.Scope,
			ProjectID:    doc.ProjectID,
			Filename:     doc.Filename,
			IndexEntryID: doc.IndexEntryID,
			OccurredAt:   s.now(),
		})
	})
	return nil
}

func entryRefs(doc *model.Document) []string {
	var out []string
	if doc.IndexEntryID != "" {
		out = append(out, doc.IndexEntryID)
	}
	if doc.PreviousEntryID != "" && doc.PreviousEntryID != doc.IndexEntryID {
		out = append(out, doc.PreviousEntryID)
	}
	return out
}
