package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcomeValidate(t *testing.T) {
	require.NoError(t, Done("entry-1").Validate())
	require.NoError(t, Duplicate("entry-1").Validate())
	require.NoError(t, Failed("boom").Validate())

	assert.ErrorIs(t, Done("").Validate(), ErrInvalidOutcome)
	assert.ErrorIs(t, Duplicate("").Validate(), ErrInvalidOutcome)
	assert.ErrorIs(t, Outcome{}.Validate(), ErrInvalidOutcome)
}

func TestFailedDefaultsMessage(t *testing.T) {
	o := Failed("")
	assert.Equal(t, StatusError, o.Status())
	assert.Equal(t, "unknown error", o.Message())
	assert.Empty(t, o.EntryID())
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.True(t, StatusDone.Terminal())
	assert.True(t, StatusDuplicate.Terminal())
	assert.True(t, StatusError.Terminal())
}

func TestDocumentFilterMatches(t *testing.T) {
	doc := &Document{Scope: ScopeProject, ProjectID: "p1", Status: StatusDone}
	assert.True(t, DocumentFilter{}.Matches(doc))
	assert.True(t, DocumentFilter{Scope: ScopeProject, ProjectID: "p1"}.Matches(doc))
	assert.False(t, DocumentFilter{ProjectID: "p2"}.Matches(doc))
	assert.False(t, DocumentFilter{Status: StatusError}.Matches(doc))
}

func TestHasPDFExtension(t *testing.T) {
	assert.True(t, (&Document{Filename: "report.PDF"}).HasPDFExtension())
	assert.False(t, (&Document{Filename: "scan.png"}).HasPDFExtension())
}
