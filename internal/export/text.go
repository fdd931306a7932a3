// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
)

// TextExporter writes a plain transcript.
type TextExporter struct {
	options *Options
}

// NewTextExporter creates a new plain-text exporter.
func NewTextExporter(opts *Options) *TextExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &TextExporter{options: opts}
}

// Export renders one "ROLE:" block per turn.
func (e *TextExporter) Export(doc *Document) ([]byte, error) {
	if doc == nil || len(doc.Turns) == 0 {
		return nil, ErrEmptyConversation
	}

	var sb strings.Builder
	if e.options.IncludeMetadata {
		fmt.Fprintf(&sb, "%s\n", doc.Title())
		fmt.Fprintf(&sb, "id: %s, %d messages, exported %s\n\n",
			doc.ID, len(doc.Turns), e.options.now().Format("2006-01-02 15:04"))
	}
	for i, turn := range doc.Turns {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s:\n%s\n", strings.ToUpper(roleLabel(turn.Role)), strings.TrimSpace(turn.Text))
	}
	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for text.
func (e *TextExporter) FileExtension() string {
	return ".txt"
}

// MimeType returns the MIME type for text.
func (e *TextExporter) MimeType() string {
	return "text/plain; charset=utf-8"
}
