// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Ellipsis is appended to shortened text.
const Ellipsis = "..."

// Summarize keeps the first maxRunes characters of s and appends Ellipsis
// when anything was cut. The result may therefore be up to maxRunes+3 runes.
// Counting is by rune so multi-byte characters are never split.
func Summarize(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + Ellipsis
}

// FitWidth shortens s to at most width terminal columns, ending in Ellipsis
// when it had to cut. Wide (CJK) characters count as two columns.
func FitWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= len(Ellipsis) {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, Ellipsis)
}

// PadRight fits s into exactly width columns, padding with spaces.
func PadRight(s string, width int) string {
	s = FitWidth(s, width)
	return runewidth.FillRight(s, width)
}

// SingleLine collapses newlines and runs of whitespace so previews stay on
// one row of a table.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
