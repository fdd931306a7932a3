// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
)

// ErrBadRequest marks caller errors. Use errors.Is to detect it; the
// wrapped cause (for example conversation.ErrInvalidIdentifier) is preserved.
var ErrBadRequest = errors.New("bad request")

// badRequest wraps cause so that both ErrBadRequest and cause match errors.Is.
func badRequest(cause error) error {
	return fmt.Errorf("%w: %w", ErrBadRequest, cause)
}

// ModelError carries the model collaborator's failure text verbatim.
type ModelError struct {
	Detail string
}

func (e *ModelError) Error() string {
	return "model error: " + e.Detail
}

// StorageError means the model replied but the turn pair was not saved.
type StorageError struct {
	ConversationID string
	Err            error
}

func (e *StorageError) Error() string {
	if e.ConversationID != "" {
		return fmt.Sprintf("storage error for conversation %s: %v", e.ConversationID, e.Err)
	}
	return fmt.Sprintf("storage error: %v", e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
