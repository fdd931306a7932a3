// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/fireside/internal/conversation"
)

// JSONExporter writes the stored record layout ({"messages": [...]}) plus
// the id and export time, so a file can be copied back into a history
// directory as-is.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

type jsonDocument struct {
	ID       string              `json:"id"`
	Exported string              `json:"exported,omitempty"`
	Messages []conversation.Turn `json:"messages"`
}

// Export converts doc to indented JSON. Empty conversations are allowed.
func (e *JSONExporter) Export(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, ErrEmptyConversation
	}
	out := jsonDocument{ID: doc.ID, Messages: doc.Turns}
	if out.Messages == nil {
		out.Messages = []conversation.Turn{}
	}
	if e.options.IncludeMetadata {
		out.Exported = e.options.now().UTC().Format(time.RFC3339)
	}
	return json.MarshalIndent(out, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
