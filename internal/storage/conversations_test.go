// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/fireside/internal/conversation"
)

func newFileConversationStore(t *testing.T) (*ConversationStore, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return NewConversationStore(fs), dir
}

// =============================================================================
// CREATE / LOAD / APPEND
// =============================================================================

func TestConversationStore_CreateDoesNotPersist(t *testing.T) {
	store, dir := newFileConversationStore(t)

	id, conv := store.Create()
	if id == "" || conv.ID != id {
		t.Fatalf("Create() = %q, %+v", id, conv)
	}
	if conv.Len() != 0 {
		t.Errorf("new conversation has %d turns", conv.Len())
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Create() wrote %d files, want 0", len(entries))
	}
}

func TestConversationStore_RoundTripAfterAppends(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := NewConversationStore(open(t))

			id, err := store.AppendTurnPair(ctx, "", "q0", "a0")
			require.NoError(t, err)
			for i := 1; i < 5; i++ {
				got, err := store.AppendTurnPair(ctx, id, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
				require.NoError(t, err)
				require.Equal(t, id, got)
			}

			conv, ok := store.Load(ctx, id)
			require.True(t, ok)
			require.Equal(t, 10, conv.Len())
			for i := 0; i < 5; i++ {
				assert.Equal(t, conversation.Turn{Role: conversation.RoleUser, Text: fmt.Sprintf("q%d", i)}, conv.Turns[2*i])
				assert.Equal(t, conversation.Turn{Role: conversation.RoleModel, Text: fmt.Sprintf("a%d", i)}, conv.Turns[2*i+1])
			}
		})
	}
}

func TestConversationStore_ReuseAddsPair(t *testing.T) {
	ctx := context.Background()
	store, _ := newFileConversationStore(t)

	id, err := store.AppendTurnPair(ctx, "", "hi", "hello")
	require.NoError(t, err)
	id2, err := store.AppendTurnPair(ctx, id, "more", "sure")
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	conv, ok := store.Load(ctx, id)
	require.True(t, ok)
	assert.Equal(t, 4, conv.Len())
}

func TestConversationStore_UnknownIDStartsNew(t *testing.T) {
	ctx := context.Background()
	store, _ := newFileConversationStore(t)

	id, err := store.AppendTurnPair(ctx, "does-not-exist", "hi", "hello")
	require.NoError(t, err)
	assert.NotEqual(t, "does-not-exist", id)

	conv, ok := store.Load(ctx, id)
	require.True(t, ok)
	assert.Equal(t, 2, conv.Len())
	_, ok = store.Load(ctx, "does-not-exist")
	assert.False(t, ok)
}

func TestConversationStore_LoadMisses(t *testing.T) {
	ctx := context.Background()
	store, dir := newFileConversationStore(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("not json"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "array.json"), []byte(`[1,2]`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nomessages.json"), []byte(`{"turns":[]}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "badmessages.json"), []byte(`{"messages":"x"}`), 0644))

	for _, id := range []string{"missing", "***", "garbage", "array", "nomessages", "badmessages"} {
		conv, ok := store.Load(ctx, id)
		assert.False(t, ok, "Load(%q) should miss", id)
		assert.Nil(t, conv)
	}

	// Corrupt records are never repaired.
	data, _ := os.ReadFile(filepath.Join(dir, "garbage.json"))
	assert.Equal(t, "not json", string(data))
}

func TestConversationStore_LoadSanitizesID(t *testing.T) {
	ctx := context.Background()
	store, _ := newFileConversationStore(t)

	id, err := store.AppendTurnPair(ctx, "", "hi", "hello")
	require.NoError(t, err)

	conv, ok := store.Load(ctx, "../"+id)
	require.True(t, ok)
	assert.Equal(t, id, conv.ID)
}

func TestConversationStore_LenientTurns(t *testing.T) {
	ctx := context.Background()
	store, dir := newFileConversationStore(t)

	doc := `{"messages":[{"role":"user","text":"a"},"oops",{"role":"model"},{"role":"model","text":"b"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mixed.json"), []byte(doc), 0644))

	conv, ok := store.Load(ctx, "mixed")
	require.True(t, ok)
	require.Equal(t, 4, conv.Len())

	history := conversation.FormatHistory(conv.Turns)
	require.Len(t, history, 2)
	assert.Equal(t, "a", history[0].Content)
	assert.Equal(t, "b", history[1].Content)
}

func TestConversationStore_RecordFormat(t *testing.T) {
	ctx := context.Background()
	store, dir := newFileConversationStore(t)

	id, err := store.AppendTurnPair(ctx, "", "héllo", "wörld")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, id+".json"))
	require.NoError(t, err)

	var doc struct {
		Messages []map[string]string `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, []map[string]string{
		{"role": "user", "text": "héllo"},
		{"role": "model", "text": "wörld"},
	}, doc.Messages)
}

func TestConversationStore_Turns(t *testing.T) {
	ctx := context.Background()
	store, _ := newFileConversationStore(t)

	id, err := store.AppendTurnPair(ctx, "", "q", "a")
	require.NoError(t, err)

	turns, ok := store.Turns(ctx, id)
	require.True(t, ok)
	turns[0].Text = "mutated"

	again, _ := store.Turns(ctx, id)
	assert.Equal(t, "q", again[0].Text)

	_, ok = store.Turns(ctx, "nope")
	assert.False(t, ok)
}

// =============================================================================
// SAVE FAILURES
// =============================================================================

type failingPutStore struct {
	ByteStore
}

func (failingPutStore) Put(context.Context, string, []byte) error {
	return errors.New("disk full")
}

func TestConversationStore_AppendSurfacesPutError(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	store := NewConversationStore(failingPutStore{fs})

	_, err = store.AppendTurnPair(context.Background(), "", "q", "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

// =============================================================================
// LIST
// =============================================================================

func TestConversationStore_ListOrderAndSummary(t *testing.T) {
	ctx := context.Background()
	store, dir := newFileConversationStore(t)

	long := strings.Repeat("x", 200)
	older, err := store.AppendTurnPair(ctx, "", long, "a")
	require.NoError(t, err)
	newer, err := store.AppendTurnPair(ctx, "", "short question", "a")
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, older+".json"), base, base))
	later := base.Add(10 * time.Minute)
	require.NoError(t, os.Chtimes(filepath.Join(dir, newer+".json"), later, later))

	list := store.List(ctx)
	require.Len(t, list, 2)
	assert.Equal(t, newer, list[0].ID)
	assert.Equal(t, "short question", list[0].Summary)
	assert.Equal(t, later.Local().Format(conversation.LastModifiedLayout), list[0].LastModified)

	assert.Equal(t, older, list[1].ID)
	assert.Equal(t, strings.Repeat("x", 80)+"...", list[1].Summary)
	assert.Len(t, []rune(list[1].Summary), 83)
}

func TestConversationStore_ListDefaultSummary(t *testing.T) {
	ctx := context.Background()
	store, dir := newFileConversationStore(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.json"), []byte(`{"messages":[]}`), 0644))

	list := store.List(ctx)
	require.Len(t, list, 2)
	for _, s := range list {
		assert.Equal(t, conversation.DefaultSummary, s.Summary, "id %s", s.ID)
	}
}

func TestConversationStore_ListTiesByID(t *testing.T) {
	ctx := context.Background()
	store, dir := newFileConversationStore(t)

	same := time.Now().Add(-time.Hour).Truncate(time.Second)
	for _, id := range []string{"c", "a", "b"} {
		path := filepath.Join(dir, id+".json")
		require.NoError(t, os.WriteFile(path, []byte(`{"messages":[]}`), 0644))
		require.NoError(t, os.Chtimes(path, same, same))
	}

	list := store.List(ctx)
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, "c", list[2].ID)
}

func TestConversationStore_ListUnavailable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "history")
	fs, err := NewFileStore(dir)
	require.NoError(t, err)
	store := NewConversationStore(fs)
	require.NoError(t, os.RemoveAll(dir))

	list := store.List(context.Background())
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestConversationStore_WithSummaryLength(t *testing.T) {
	ctx := context.Background()
	store, _ := newFileConversationStore(t)
	store.WithSummaryLength(5).WithSummaryLength(0)

	_, err := store.AppendTurnPair(ctx, "", "abcdefgh", "a")
	require.NoError(t, err)

	list := store.List(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, "abcde...", list[0].Summary)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

// gatedStore holds every Get until all armed readers have arrived, forcing
// concurrent read-modify-write cycles to interleave. Puts are recorded in
// the order they reach the backend.
type gatedStore struct {
	ByteStore
	barrier sync.WaitGroup
	armed   bool

	mu   sync.Mutex
	puts [][]byte
}

func (g *gatedStore) Put(ctx context.Context, key string, data []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.ByteStore.Put(ctx, key, data); err != nil {
		return err
	}
	g.puts = append(g.puts, append([]byte(nil), data...))
	return nil
}

func (g *gatedStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := g.ByteStore.Get(ctx, key)
	if g.armed {
		g.barrier.Done()
		g.barrier.Wait()
	}
	return data, err
}

func TestConversationStore_ConcurrentAppendsLastWriterWins(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	gate := &gatedStore{ByteStore: fs}
	store := NewConversationStore(gate)

	id, err := store.AppendTurnPair(ctx, "", "seed", "seed-reply")
	require.NoError(t, err)

	gate.barrier.Add(2)
	gate.armed = true

	var wg sync.WaitGroup
	for _, p := range []string{"first", "second"} {
		wg.Add(1)
		go func(prompt string) {
			defer wg.Done()
			_, err := store.AppendTurnPair(ctx, id, prompt, prompt+"-reply")
			assert.NoError(t, err)
		}(p)
	}
	wg.Wait()
	gate.armed = false

	// Seed plus the two concurrent writes.
	require.Len(t, gate.puts, 3)
	last := gate.puts[len(gate.puts)-1]

	stored, err := fs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, string(last), string(stored), "the record must be the last Put")

	lastTurns, err := decodeRecord(last)
	require.NoError(t, err)
	conv, ok := store.Load(ctx, id)
	require.True(t, ok)
	// Both writers read the 2-turn record; the earlier update is lost.
	require.Equal(t, 4, conv.Len())
	assert.Equal(t, "seed", conv.Turns[0].Text)
	assert.Equal(t, lastTurns, conv.Turns)
}
