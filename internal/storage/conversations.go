// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/jeranaias/fireside/internal/conversation"
	"github.com/jeranaias/fireside/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrMalformedRecord is returned when a stored document is not a JSON object
// with a "messages" array.
var ErrMalformedRecord = errors.New("malformed conversation record")

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// ConversationStore maps conversation ids to persisted records.
type ConversationStore struct {
	bytes ByteStore

	// SummaryLength is the number of runes of the first turn shown in listings.
	SummaryLength int
}

// NewConversationStore wraps a ByteStore.
func NewConversationStore(bs ByteStore) *ConversationStore {
	return &ConversationStore{
		bytes:         bs,
		SummaryLength: conversation.SummaryLength,
	}
}

// WithSummaryLength sets the listing preview length. Non-positive values
// keep the default.
func (s *ConversationStore) WithSummaryLength(n int) *ConversationStore {
	if n > 0 {
		s.SummaryLength = n
	}
	return s
}

// Close closes the underlying byte store.
func (s *ConversationStore) Close() error {
	return s.bytes.Close()
}

// Create allocates a new id and an empty conversation. Nothing is persisted
// until the first AppendTurnPair.
func (s *ConversationStore) Create() (string, *conversation.Conversation) {
	id := conversation.NewID()
	return id, conversation.New(id)
}

// =============================================================================
// LOAD
// =============================================================================

// Load returns the conversation for id. found is false when the id is
// invalid, the record is absent or malformed, or the byte store fails.
// Failures are logged; corrupt records are left as they are.
func (s *ConversationStore) Load(ctx context.Context, id string) (*conversation.Conversation, bool) {
	key, err := conversation.NormalizeID(id)
	if err != nil {
		log.Printf("CONVERSATION_LOAD_REJECTED | id=%q error=%v", id, err)
		return nil, false
	}

	data, err := s.bytes.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			log.Printf("CONVERSATION_NOT_FOUND | id=%s", key)
		} else {
			log.Printf("CONVERSATION_LOAD_ERROR | id=%s error=%v", key, err)
		}
		return nil, false
	}

	turns, err := decodeRecord(data)
	if err != nil {
		log.Printf("CONVERSATION_LOAD_ERROR | id=%s error=%v", key, err)
		return nil, false
	}
	return &conversation.Conversation{ID: key, Turns: turns}, true
}

// Turns returns a copy of the stored turns for id.
func (s *ConversationStore) Turns(ctx context.Context, id string) ([]conversation.Turn, bool) {
	conv, ok := s.Load(ctx, id)
	if !ok {
		return nil, false
	}
	out := make([]conversation.Turn, len(conv.Turns))
	copy(out, conv.Turns)
	return out, true
}

// decodeRecord parses a stored document. The document must be an object with
// a "messages" array; individual entries that are not objects with string
// fields decode as empty turns so the history formatter can drop them.
func decodeRecord(data []byte) ([]conversation.Turn, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		return nil, ErrMalformedRecord
	}
	raw, ok := doc["messages"]
	if !ok {
		return nil, fmt.Errorf("%w: missing messages", ErrMalformedRecord)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || entries == nil {
		return nil, fmt.Errorf("%w: messages is not an array", ErrMalformedRecord)
	}

	turns := make([]conversation.Turn, 0, len(entries))
	for _, e := range entries {
		var t conversation.Turn
		if err := json.Unmarshal(e, &t); err != nil {
			t = conversation.Turn{}
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// =============================================================================
// APPEND
// =============================================================================

// AppendTurnPair appends a user turn and a model turn to the conversation and
// rewrites its record. When id is empty or does not load, a new conversation
// is created. The returned id is authoritative.
//
// There is no lock between the read and the write: concurrent appends to the
// same id are last-writer-wins.
func (s *ConversationStore) AppendTurnPair(ctx context.Context, id, userText, modelText string) (string, error) {
	var conv *conversation.Conversation
	if id != "" {
		if loaded, ok := s.Load(ctx, id); ok {
			conv = loaded
		} else {
			log.Printf("CONVERSATION_RESTART | requested=%q", id)
		}
	}
	if conv == nil {
		newID, fresh := s.Create()
		conv = fresh
		log.Printf("CONVERSATION_CREATED | id=%s", newID)
	}

	conv.AppendPair(userText, modelText)

	data, err := json.MarshalIndent(conv.Record(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode conversation %s: %w", conv.ID, err)
	}
	if err := s.bytes.Put(ctx, conv.ID, data); err != nil {
		return "", fmt.Errorf("failed to save conversation %s: %w", conv.ID, err)
	}

	log.Printf("CONVERSATION_SAVED | id=%s turns=%d", conv.ID, conv.Len())
	return conv.ID, nil
}

// =============================================================================
// LIST
// =============================================================================

// List returns a summary for every stored conversation, most recently
// modified first. Unreadable records are listed with the default summary.
// If the store cannot be enumerated the result is empty.
func (s *ConversationStore) List(ctx context.Context) []conversation.Summary {
	keys, err := s.bytes.Keys(ctx)
	if err != nil {
		log.Printf("CONVERSATION_LIST_ERROR | error=%v", err)
		return []conversation.Summary{}
	}

	out := make([]conversation.Summary, 0, len(keys))
	for _, key := range keys {
		mod, err := s.bytes.ModTime(ctx, key)
		if err != nil {
			// Removed or unreadable between enumeration and stat.
			log.Printf("CONVERSATION_LIST_SKIP | id=%s error=%v", key, err)
			continue
		}
		out = append(out, conversation.Summary{
			ID:           key,
			Summary:      s.summarize(ctx, key),
			LastModified: mod.Local().Format(conversation.LastModifiedLayout),
			ModTime:      mod,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.After(out[j].ModTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *ConversationStore) summarize(ctx context.Context, key string) string {
	data, err := s.bytes.Get(ctx, key)
	if err != nil {
		log.Printf("CONVERSATION_SUMMARY_ERROR | id=%s error=%v", key, err)
		return conversation.DefaultSummary
	}
	turns, err := decodeRecord(data)
	if err != nil || len(turns) == 0 || turns[0].Text == "" {
		return conversation.DefaultSummary
	}
	return util.Summarize(turns[0].Text, s.SummaryLength)
}
