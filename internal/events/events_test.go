package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/vaultindex/internal/model"
)

func TestForStatus(t *testing.T) {
	assert.Equal(t, TypeDocumentDone, ForStatus(model.StatusDone))
	assert.Equal(t, TypeDocumentDuplicate, ForStatus(model.StatusDuplicate))
	assert.Equal(t, TypeDocumentError, ForStatus(model.StatusError))
}

func TestRecorder(t *testing.T) {
	var r Recorder
	ctx := context.Background()
	require.NoError(t, r.Publish(ctx, Event{Type: TypeDocumentDone, DocumentID: "d1"}))
	r.Err = errors.New("nats down")
	assert.Error(t, r.Publish(ctx, Event{Type: TypeDocumentDone, DocumentID: "d2"}))

	got := r.Events()
	require.Len(t, got, 1)
	assert.Equal(t, "d1", got[0].DocumentID)
}

func TestEventJSONShape(t *testing.T) {
	evt := Event{
		Type:         TypeDocumentDuplicate,
		DocumentID:   "d1",
		Scope:        model.ScopeGlobal,
		Filename:     "report.pdf",
		Status:       model.StatusDuplicate,
		IndexEntryID: "e1",
		OccurredAt:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(evt)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "document.duplicate",
		"documentId": "d1",
		"scope": "global",
		"filename": "report.pdf",
		"status": "duplicate",
		"indexEntryId": "e1",
		"occurredAt": "2024-05-01T00:00:00Z"
	}`, string(data))
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
}
