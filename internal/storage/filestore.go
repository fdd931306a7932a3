// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/fireside/internal/conversation"
	"github.com/jeranaias/fireside/internal/util"
)

const recordExt = ".json"

// maxFileKeyBytes keeps <key>.json within the common 255-byte name limit.
const maxFileKeyBytes = 255 - len(recordExt)

// FileStore keeps one document per key as <key>.json inside Dir.
type FileStore struct {
	// Dir holds the documents. Default: ~/.fireside/history/
	Dir string
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("file store directory is empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

// validateFileKey applies validateKey plus the file name length limit.
func validateFileKey(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if len(key) > maxFileKeyBytes {
		return fmt.Errorf("%w: key is %d bytes, limit %d", ErrInvalidKey, len(key), maxFileKeyBytes)
	}
	return nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.Dir, key+recordExt)
}

// Get reads the document for key.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateFileKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return data, nil
}

// Put atomically replaces the document for key.
func (s *FileStore) Put(ctx context.Context, key string, data []byte) error {
	if err := validateFileKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return util.AtomicWriteFile(s.path(key), data, 0644)
}

// Keys lists every stored key. Temp files from interrupted writes, non-JSON
// entries and names that are not normalized conversation ids are ignored.
func (s *FileStore) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, recordExt) || strings.HasPrefix(name, ".") {
			continue
		}
		key := strings.TrimSuffix(name, recordExt)
		if id, err := conversation.NormalizeID(key); err != nil || id != key {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// ModTime returns the file modification time for key.
func (s *FileStore) ModTime(ctx context.Context, key string) (time.Time, error) {
	if err := validateFileKey(key); err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, ErrKeyNotFound
		}
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Close is a no-op; files are not held open between calls.
func (s *FileStore) Close() error { return nil }
