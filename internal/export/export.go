// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders a stored conversation as Markdown, JSON or plain
// text, for download or for writing to a file.
package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/fireside/internal/conversation"
	"github.com/jeranaias/fireside/internal/util"
)

// ErrUnsupportedFormat is returned by ForFormat.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// ErrEmptyConversation is returned when there is nothing to export.
var ErrEmptyConversation = errors.New("conversation has no messages")

// Exporter converts a conversation to one output format.
type Exporter interface {
	Export(doc *Document) ([]byte, error)

	// FileExtension includes the dot, e.g. ".md".
	FileExtension() string
	MimeType() string
}

// Document is the exportable view of a conversation.
type Document struct {
	ID    string
	Turns []conversation.Turn
}

// NewDocument builds a document from stored turns.
func NewDocument(id string, turns []conversation.Turn) *Document {
	return &Document{ID: id, Turns: turns}
}

// Title is the first user text on one line, shortened, or the default
// conversation summary.
func (d *Document) Title() string {
	for _, t := range d.Turns {
		if t.Role == conversation.RoleUser && strings.TrimSpace(t.Text) != "" {
			return util.Summarize(util.SingleLine(t.Text), conversation.SummaryLength)
		}
	}
	return conversation.DefaultSummary
}

// Options configures exporters.
type Options struct {
	// IncludeMetadata adds a header with id, message count and export time.
	IncludeMetadata bool

	// Now stamps the export. Defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{IncludeMetadata: true, Now: time.Now}
}

func (o *Options) now() time.Time {
	if o == nil || o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// Formats lists the accepted format names.
var Formats = []string{"markdown", "json", "text"}

// ForFormat returns the exporter for a format name. Aliases "md", "txt" and
// "plain" are accepted; "" means markdown.
func ForFormat(format string, opts *Options) (Exporter, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "markdown", "md":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	case "text", "txt", "plain":
		return NewTextExporter(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnsupportedFormat, format, strings.Join(Formats, ", "))
	}
}

// Filename is a safe file name for doc in the exporter's format.
func Filename(doc *Document, exporter Exporter, at time.Time) string {
	return fmt.Sprintf("conversation_%s_%s%s",
		sanitizeFilename(doc.Title()),
		at.Format("20060102_150405"),
		exporter.FileExtension(),
	)
}

// ExportToFile writes doc into dir and returns the file path.
func ExportToFile(doc *Document, exporter Exporter, dir string, at time.Time) (string, error) {
	content, err := exporter.Export(doc)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	path := filepath.Join(dir, Filename(doc, exporter, at))
	if err := util.AtomicWriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// sanitizeFilename replaces characters that are unsafe in file names on
// Windows or Unix and caps the length.
func sanitizeFilename(s string) string {
	const maxLen = 50
	s = strings.TrimSuffix(s, util.Ellipsis)
	if runes := []rune(s); len(runes) > maxLen {
		s = string(runes[:maxLen])
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), "._-")
	if out == "" {
		return "conversation"
	}
	return out
}
