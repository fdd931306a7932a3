// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"uuid unchanged", "3f1c2a7e-9b4d-4c1e-8f00-1234567890ab", "3f1c2a7e-9b4d-4c1e-8f00-1234567890ab"},
		{"path traversal", "abc/../def", "abcdef"},
		{"windows separators", `..\..\etc\passwd`, "etcpasswd"},
		{"underscore kept", "my_chat-01", "my_chat-01"},
		{"spaces dropped", " a b c ", "abc"},
		{"unicode letters", "café_日本", "café_日本"},
		{"null byte", "abc\x00def", "abcdef"},
		{"long id kept", strings.Repeat("a", 300), strings.Repeat("a", 300)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeID(tt.in)
			if err != nil {
				t.Fatalf("NormalizeID(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeID(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeID_Invalid(t *testing.T) {
	for _, in := range []string{"", "***", "../..", "/", "   "} {
		if _, err := NormalizeID(in); !errors.Is(err, ErrInvalidIdentifier) {
			t.Errorf("NormalizeID(%q) error = %v, want ErrInvalidIdentifier", in, err)
		}
	}
}

func TestNormalizeID_ComposedAndDecomposedMatch(t *testing.T) {
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"

	a, err := NormalizeID(composed)
	if err != nil {
		t.Fatalf("composed: %v", err)
	}
	b, err := NormalizeID(decomposed)
	if err != nil {
		t.Fatalf("decomposed: %v", err)
	}
	if a != b {
		t.Errorf("NFC forms differ: %q vs %q", a, b)
	}
}

func TestNormalizeID_Idempotent(t *testing.T) {
	for _, in := range []string{"abc/../def", "x y z", "café"} {
		once, err := NormalizeID(in)
		if err != nil {
			t.Fatalf("NormalizeID(%q): %v", in, err)
		}
		twice, err := NormalizeID(once)
		if err != nil {
			t.Fatalf("NormalizeID(%q): %v", once, err)
		}
		if once != twice {
			t.Errorf("not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestNewID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		parsed, err := uuid.Parse(id)
		if err != nil {
			t.Fatalf("NewID() = %q is not a UUID: %v", id, err)
		}
		if parsed.Version() != 4 {
			t.Errorf("NewID() version = %d, want 4", parsed.Version())
		}
		norm, err := NormalizeID(id)
		if err != nil || norm != id {
			t.Errorf("NormalizeID(NewID()) = %q, %v; want unchanged", norm, err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
