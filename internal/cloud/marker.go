// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"fmt"
	"strings"
)

// ErrorMarker prefixes every failure reply. A genuine model reply that
// happens to begin with it is indistinguishable from a failure.
const ErrorMarker = "Error: "

// IsErrorReply reports whether text is a failure reply.
func IsErrorReply(text string) bool {
	return strings.HasPrefix(text, ErrorMarker)
}

// ErrorReply formats a failure reply.
func ErrorReply(format string, args ...any) string {
	return ErrorMarker + fmt.Sprintf(format, args...)
}
