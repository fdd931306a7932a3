// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/fireside/internal/conversation"
)

var fixedTime = time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

func sampleDoc() *Document {
	return NewDocument("abc-123", []conversation.Turn{
		{Role: conversation.RoleUser, Text: "How do I reverse a *slice*?"},
		{Role: conversation.RoleModel, Text: "Use slices.Reverse:\n\n```go\nslices.Reverse(s)\n```"},
	})
}

func fixedOptions() *Options {
	return &Options{IncludeMetadata: true, Now: func() time.Time { return fixedTime }}
}

func TestDocumentTitle(t *testing.T) {
	assert.Equal(t, "How do I reverse a *slice*?", sampleDoc().Title())

	long := NewDocument("x", []conversation.Turn{{Role: conversation.RoleUser, Text: strings.Repeat("a", 100)}})
	assert.Equal(t, strings.Repeat("a", conversation.SummaryLength)+"...", long.Title())

	modelOnly := NewDocument("x", []conversation.Turn{{Role: conversation.RoleModel, Text: "hi"}})
	assert.Equal(t, conversation.DefaultSummary, modelOnly.Title())
}

func TestForFormat(t *testing.T) {
	tests := []struct {
		format string
		ext    string
	}{
		{"", ".md"},
		{"markdown", ".md"},
		{"MD", ".md"},
		{"json", ".json"},
		{"txt", ".txt"},
		{"plain", ".txt"},
	}
	for _, tt := range tests {
		e, err := ForFormat(tt.format, nil)
		require.NoError(t, err, tt.format)
		assert.Equal(t, tt.ext, e.FileExtension(), tt.format)
	}

	_, err := ForFormat("pdf", nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestMarkdownExport(t *testing.T) {
	out, err := NewMarkdownExporter(fixedOptions()).Export(sampleDoc())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\ntitle: \"How do I reverse a *slice*?\"\n"), md)
	assert.Contains(t, md, "id: abc-123\n")
	assert.Contains(t, md, "messages: 2\n")
	assert.Contains(t, md, "exported: 2025-03-14T15:09:26Z\n")
	assert.Contains(t, md, `# How do I reverse a \*slice\*?`)
	assert.Contains(t, md, "### You\n\nHow do I reverse a *slice*?")
	assert.Contains(t, md, "### Model\n\nUse slices.Reverse:\n\n```go\nslices.Reverse(s)\n```")

	noMeta, err := NewMarkdownExporter(&Options{}).Export(sampleDoc())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(noMeta), "# "))

	_, err = NewMarkdownExporter(nil).Export(NewDocument("x", nil))
	assert.ErrorIs(t, err, ErrEmptyConversation)
}

func TestJSONExport_MatchesRecordLayout(t *testing.T) {
	out, err := NewJSONExporter(fixedOptions()).Export(sampleDoc())
	require.NoError(t, err)

	var rec conversation.Record
	require.NoError(t, json.Unmarshal(out, &rec))
	assert.Equal(t, sampleDoc().Turns, rec.Messages)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(out, &raw))
	assert.Equal(t, "abc-123", raw["id"])
	assert.Equal(t, "2025-03-14T15:09:26Z", raw["exported"])

	empty, err := NewJSONExporter(&Options{}).Export(NewDocument("x", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"x","messages":[]}`, string(empty))
}

func TestTextExport(t *testing.T) {
	out, err := NewTextExporter(&Options{}).Export(sampleDoc())
	require.NoError(t, err)
	assert.Equal(t,
		"YOU:\nHow do I reverse a *slice*?\n\nMODEL:\nUse slices.Reverse:\n\n```go\nslices.Reverse(s)\n```\n",
		string(out))
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello world", "hello_world"},
		{`a/b\c:d*e?f"g<h>i|j`, "a-b-c-d-e-f-g-h-i-j"},
		{"...", "conversation"},
		{"", "conversation"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
		{"tab\there", "tab_here"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), tt.in)
	}
}

func TestExportToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	e := NewTextExporter(fixedOptions())

	path, err := ExportToFile(sampleDoc(), e, dir, fixedTime)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "conversation_How_do_I_reverse_a_-slice_20250314_150926.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "MODEL:")

	_, err = ExportToFile(NewDocument("x", nil), e, dir, fixedTime)
	assert.ErrorIs(t, err, ErrEmptyConversation)
}
