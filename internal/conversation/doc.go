// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation defines the conversation data model shared by the
// store, the chat orchestrator, and the HTTP surface.
//
// # Key Types
//
//   - Turn: one utterance, role "user" or "model"
//   - Conversation: an id plus its ordered turns, always in (user, model) pairs
//   - Summary: listing entry derived from the store on every request
//   - ModelTurn: a turn in the shape the model collaborator consumes
//
// # Identifiers
//
// NormalizeID reduces a caller-supplied id to letters, digits, '-' and '_'
// so that it is always safe to use as a storage key:
//
//	id, err := conversation.NormalizeID("abc/../def") // "abcdef", nil
//	_, err = conversation.NormalizeID("***")          // ErrInvalidIdentifier
//
// # History
//
// FormatHistory converts stored turns into model turns, dropping malformed
// entries and coercing unknown roles to "user".
package conversation
