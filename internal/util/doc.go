// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the fireside packages.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file replacement (temp file, fsync, rename)
//   - Summarize: rune-safe preview text with a trailing ellipsis
//   - PadRight / FitWidth: display-width aware column formatting
//
// # Usage
//
//	err := util.AtomicWriteFile(path, data, 0644)
//	preview := util.Summarize(firstTurn, 80)
package util
