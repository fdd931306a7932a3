// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/fireside/internal/config"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrKeyNotFound is returned by ByteStore.Get and ModTime for absent keys.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidKey is returned for keys that cannot be stored safely.
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown storage backend")
)

// =============================================================================
// BYTE STORE
// =============================================================================

// ByteStore is a durable map from key to document. Put replaces a document
// atomically: readers observe either the previous or the new bytes.
type ByteStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Keys(ctx context.Context) ([]string, error)
	ModTime(ctx context.Context, key string) (time.Time, error)
	Close() error
}

// validateKey rejects keys that could escape a directory or collide with
// backend bookkeeping.
func validateKey(key string) error {
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Open creates the ByteStore selected by cfg.Backend.
func Open(cfg config.StorageConfig) (ByteStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", config.BackendFile:
		return NewFileStore(cfg.Dir)
	case config.BackendBolt:
		return NewBoltStore(cfg.BoltPath)
	case config.BackendSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}
