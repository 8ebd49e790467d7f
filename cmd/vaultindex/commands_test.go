package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/vaultindex/internal/model"
)

func TestRootCommandRegistersOperations(t *testing.T) {
	root := newRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"fix-stuck", "ingest", "delete", "migrate", "status"}, names)
}

func TestIngestNeedsInput(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"ingest", "--text", "only text"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--filename")
}

func TestDeleteRequiresID(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"delete"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	assert.Error(t, root.Execute())
}

func TestPrintDocuments(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	updated := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, printDocuments(&buf, []model.Document{
		{ID: "d1", Status: model.StatusDone, Scope: model.ScopeGlobal, Filename: "a.pdf", UpdatedAt: updated},
		{ID: "d2", Status: model.StatusError, Scope: model.ScopeProject, ProjectID: "p1", Filename: "b.pdf", Error: "no text", UpdatedAt: updated},
	}))
	out := buf.String()
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "project:p1")
	assert.Contains(t, out, "2024-03-01 12:00:00")
	assert.Contains(t, out, "no text")
}
