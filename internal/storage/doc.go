// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for fireside.
//
// Two layers live here. A ByteStore is a durable key/value collaborator that
// stores opaque documents and reports when each was last written. The
// ConversationStore sits on top of it and owns the record format, id
// allocation, and listing.
//
// # Backends
//
//   - FileStore: one <id>.json file per conversation, atomic rename on write
//   - BoltStore: a single bbolt database file
//   - SQLiteStore: a single SQLite database (pure Go driver)
//
// Open picks one from configuration:
//
//	bs, err := storage.Open(cfg.Storage)
//	store := storage.NewConversationStore(bs)
//	id, err := store.AppendTurnPair(ctx, "", "hi", "hello")
//
// # Consistency
//
// Every update rewrites the whole document. There is no cross-request lock:
// two concurrent appends to one conversation are last-writer-wins.
package storage
