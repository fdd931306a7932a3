// errors.go - Typed CLI errors and exit codes.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/fireside/internal/chat"
	"github.com/jeranaias/fireside/internal/config"
)

// Exit codes.
const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitModelError    = 4
	ExitStorageError  = 5
	ExitNotFoundError = 7
	ExitInterrupted   = 130
)

// UsageError means the command line was wrong.
type UsageError struct {
	Command string
	Message string
}

func (e *UsageError) Error() string {
	if e.Command == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Command, e.Message)
}

// NotFoundError means a named resource does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func usageErrorf(command, format string, args ...any) error {
	return &UsageError{Command: command, Message: fmt.Sprintf(format, args...)}
}

// GetExitCode maps err to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	var notFoundErr *NotFoundError
	var validateErrs config.ValidateErrors
	var modelErr *chat.ModelError
	var storageErr *chat.StorageError

	switch {
	case errors.As(err, &usageErr), errors.Is(err, chat.ErrBadRequest):
		return ExitUsageError
	case errors.As(err, &validateErrs):
		return ExitConfigError
	case errors.As(err, &notFoundErr):
		return ExitNotFoundError
	case errors.As(err, &modelErr):
		return ExitModelError
	case errors.As(err, &storageErr):
		return ExitStorageError
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	default:
		return ExitGeneralError
	}
}

// DisplayError writes err to w, as a JSON envelope when jsonMode is set.
func DisplayError(w io.Writer, command string, err error, jsonMode bool) {
	if jsonMode {
		_ = NewJSONErrorResponse(command, err).Print(w)
		return
	}
	var modelErr *chat.ModelError
	if errors.As(err, &modelErr) {
		// The marker text already reads "Error: ...".
		fmt.Fprintln(w, modelErr.Detail)
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		fmt.Fprintln(w, "Run 'fireside help' for usage.")
	}
}
