// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.json")
	data := []byte(`{"messages":[]}`)

	if err := AtomicWriteFile(path, data, 0644); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != string(data) {
		t.Errorf("Content mismatch: got %q, want %q", content, data)
	}
}

func TestAtomicWriteFile_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history", "nested", "a.json")

	if err := AtomicWriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("File not created: %v", err)
	}
}

func TestAtomicWriteFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.json")

	if err := AtomicWriteFile(path, []byte("initial"), 0644); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("replaced"), 0644); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "replaced" {
		t.Errorf("Content = %q, want %q", content, "replaced")
	}
}

func TestAtomicWriteFile_NoTempLeftBehind(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		if err := AtomicWriteFile(filepath.Join(dir, "a.json"), []byte("v"), 0644); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(entries))
	}
}

func TestAtomicWriteFile_TargetIsDirectory(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "taken")
	if err := os.Mkdir(target, 0755); err != nil {
		t.Fatal(err)
	}
	// Put a file inside so the rename over a non-empty directory fails everywhere.
	if err := os.WriteFile(filepath.Join(target, "f"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := AtomicWriteFile(target, []byte("data"), 0644); err == nil {
		t.Fatal("expected error when target is a non-empty directory")
	}
}

// =============================================================================
// TEXT TESTS
// =============================================================================

func TestSummarize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "Hello", 80, "Hello"},
		{"exact", strings.Repeat("a", 80), 80, strings.Repeat("a", 80)},
		{"long", strings.Repeat("a", 200), 80, strings.Repeat("a", 80) + "..."},
		{"multibyte", "日本語のテキスト", 3, "日本語..."},
		{"zero", "abc", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summarize(tt.in, tt.max); got != tt.want {
				t.Errorf("Summarize(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestFitWidth_WideCharacters(t *testing.T) {
	got := FitWidth("日本語のテキスト", 8)
	if w := runewidth.StringWidth(got); w > 8 {
		t.Errorf("FitWidth width = %d, want <= 8 (%q)", w, got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("FitWidth(%q) should end with ellipsis", got)
	}
	if FitWidth("short", 10) != "short" {
		t.Error("FitWidth should not touch text that fits")
	}
}

func TestPadRight(t *testing.T) {
	got := PadRight("ab", 5)
	if got != "ab   " {
		t.Errorf("PadRight = %q, want %q", got, "ab   ")
	}
	if w := runewidth.StringWidth(PadRight("日本語のテキスト", 6)); w != 6 {
		t.Errorf("PadRight width = %d, want 6", w)
	}
}

func TestSingleLine(t *testing.T) {
	if got := SingleLine("a\n b\t\tc  "); got != "a b c" {
		t.Errorf("SingleLine = %q, want %q", got, "a b c")
	}
}
