// Package queue schedules pipeline work either on Redis through asynq or on
// an in-process worker pool. Both run the same handlers with the same retry
// policy.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// TypeProcessUpload turns a registered upload into a document.
	TypeProcessUpload = "upload:process"
	// TypeIngestDocument ingests caller-supplied text without a blob.
	TypeIngestDocument = "document:ingest"
)

// ErrUnknownTask is returned when no handler is registered for a type.
var ErrUnknownTask = errors.New("unknown task type")

// Task is a typed, JSON-encoded unit of work. Key deduplicates pending tasks
// of the same type.
type Task struct {
	Type    string
	Key     string
	Payload []byte
}

// NewTask encodes payload as JSON.
func NewTask(typ, key string, payload any) (Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return Task{Type: typ, Key: key, Payload: data}, nil
}

// ProcessUploadPayload is serialized into upload:process tasks.
type ProcessUploadPayload struct {
	UploadID string `json:"upload_id"`
}

// IngestTextPayload is serialized into document:ingest tasks.
type IngestTextPayload struct {
	Scope          string   `json:"scope"`
	ProjectID      string   `json:"project_id,omitempty"`
	Filename       string   `json:"filename"`
	Title          string   `json:"title"`
	Text           string   `json:"text"`
	DocumentNumber string   `json:"document_number,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

// Enqueuer schedules a task for at-least-once execution.
type Enqueuer interface {
	Enqueue(ctx context.Context, task Task) error
}

// HandlerFunc runs one attempt of a task.
type HandlerFunc func(ctx context.Context, payload []byte) error
