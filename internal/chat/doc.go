// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat runs one conversational turn end to end: validate the
// conversation id, load prior turns, call the model, and persist the new
// (user, model) pair.
//
// # Errors
//
//   - ErrBadRequest: blank prompt, invalid id, or invalid settings; nothing happened
//   - *ModelError: the model reported a failure; nothing was persisted
//   - *StorageError: the model replied but the pair could not be saved
//
// A stale conversation id is not an error: the turn starts a new
// conversation and the new id is returned.
package chat
