// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"log"
	"strings"
)

// SkippedTurn records a stored turn that could not be sent to the model.
type SkippedTurn struct {
	Index  int
	Reason string
}

// FormatHistory converts stored turns into model turns. It never fails:
// malformed turns are logged and left out.
func FormatHistory(turns []Turn) []ModelTurn {
	out, skipped := FormatHistoryReport(turns)
	for _, s := range skipped {
		log.Printf("HISTORY_SKIP | index=%d reason=%s", s.Index, s.Reason)
	}
	return out
}

// FormatHistoryReport is FormatHistory without logging; skipped entries are
// returned instead. Order of the surviving turns is preserved.
func FormatHistoryReport(turns []Turn) ([]ModelTurn, []SkippedTurn) {
	out := make([]ModelTurn, 0, len(turns))
	var skipped []SkippedTurn

	for i, t := range turns {
		switch {
		case strings.TrimSpace(string(t.Role)) == "":
			skipped = append(skipped, SkippedTurn{Index: i, Reason: "missing role"})
			continue
		case t.Text == "":
			skipped = append(skipped, SkippedTurn{Index: i, Reason: "missing text"})
			continue
		}
		out = append(out, ModelTurn{Role: ParseRole(string(t.Role)), Content: t.Text})
	}
	return out, skipped
}
