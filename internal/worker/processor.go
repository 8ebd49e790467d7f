// Package worker holds the task handlers shared by the asynq server and the
// in-process queue.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/vaultindex/internal/ingest"
	"github.com/dharsanguruparan/vaultindex/internal/model"
	"github.com/dharsanguruparan/vaultindex/internal/queue"
)

// Pipeline is the part of the ingest service the handlers drive.
type Pipeline interface {
	ProcessUpload(ctx context.Context, uploadID string) error
	Ingest(ctx context.Context, req ingest.Request) (ingest.Result, error)
}

// Processor decodes task payloads and runs the pipeline.
type Processor struct {
	pipeline Pipeline
	log      *zap.Logger
}

func NewProcessor(p Pipeline, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{pipeline: p, log: log.With(zap.String("component", "worker"))}
}

// Handlers maps task types to handlers.
func (p *Processor) Handlers() map[string]queue.HandlerFunc {
	return map[string]queue.HandlerFunc{
		queue.TypeProcessUpload:  p.HandleProcessUpload,
		queue.TypeIngestDocument: p.HandleIngestDocument,
	}
}

// Handler returns the asynq mux used by cmd/worker.
func (p *Processor) Handler() *asynq.ServeMux {
	return queue.NewServeMux(p.Handlers())
}

// Register installs the handlers on an in-process queue.
func (p *Processor) Register(q *queue.LocalEnqueuer) {
	for typ, h := range p.Handlers() {
		q.Handle(typ, h)
	}
}

func (p *Processor) HandleProcessUpload(ctx context.Context, payload []byte) error {
	var in queue.ProcessUploadPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		return queue.Permanent(fmt.Errorf("decode payload: %w", err))
	}
	if in.UploadID == "" {
		return queue.Permanent(errors.New("decode payload: missing upload id"))
	}
	err := p.pipeline.ProcessUpload(ctx, in.UploadID)
	if err != nil {
		p.log.Warn("upload processing failed", zap.String("uploadId", in.UploadID),
			zap.Bool("permanent", queue.IsPermanent(err)), zap.Error(err))
	}
	return err
}

func (p *Processor) HandleIngestDocument(ctx context.Context, payload []byte) error {
	var in queue.IngestTextPayload
	if err := json.Unmarshal(payload, &in); err != nil {
		return queue.Permanent(fmt.Errorf("decode payload: %w", err))
	}
	res, err := p.pipeline.Ingest(ctx, ingest.Request{
		Scope:          model.Scope(in.Scope),
		ProjectID:      in.ProjectID,
		Filename:       in.Filename,
		Title:          in.Title,
		Text:           in.Text,
		DocumentNumber: in.DocumentNumber,
		Tags:           in.Tags,
	})
	if err != nil {
		if !ingest.Retryable(err) {
			return queue.Permanent(err)
		}
		return err
	}
	log := p.log.With(zap.String("documentId", res.DocumentID))
	if res.Err == nil {
		log.Info("document ingested", zap.String("status", string(res.Status)))
		return nil
	}
	if !ingest.Retryable(res.Err) {
		log.Warn("document failed", zap.Error(res.Err))
		return queue.Permanent(res.Err)
	}
	return res.Err
}
