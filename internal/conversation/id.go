// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidIdentifier is returned when an identifier has no usable characters.
var ErrInvalidIdentifier = errors.New("invalid conversation identifier")

// SECURITY: the result is used directly as a file name or database key, so
// path separators, dots and control characters never survive.
//
// NormalizeID keeps Unicode letters, Unicode digits, '-' and '_' from raw and
// drops everything else. Input is first brought to NFC so that composed and
// decomposed spellings of the same text map to one key. An empty result
// yields ErrInvalidIdentifier. Length is not bounded here; backends with a
// key size limit reject long keys themselves.
func NormalizeID(raw string) (string, error) {
	var b strings.Builder
	for _, r := range norm.NFC.String(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	id := b.String()
	if id == "" {
		return "", ErrInvalidIdentifier
	}
	return id, nil
}

// NewID returns a fresh random (version 4) UUID. Its text form already
// passes NormalizeID unchanged.
func NewID() string {
	return uuid.New().String()
}
