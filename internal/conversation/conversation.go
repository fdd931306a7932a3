// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"strings"
	"time"
)

// =============================================================================
// ROLES
// =============================================================================

// Role identifies who produced a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// ParseRole maps a stored role onto the two known roles. Comparison is
// case-insensitive; anything that is not "model" is treated as the user.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleModel)) {
		return RoleModel
	}
	return RoleUser
}

// =============================================================================
// TURNS AND CONVERSATIONS
// =============================================================================

// Turn is one persisted utterance. Role is kept as written so that records
// produced by other writers survive a round trip unchanged.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Conversation is an ordered list of turns under a stable identifier.
type Conversation struct {
	ID    string
	Turns []Turn
}

// New returns an empty conversation with the given id.
func New(id string) *Conversation {
	return &Conversation{ID: id, Turns: []Turn{}}
}

// AppendPair appends a user turn followed by a model turn.
func (c *Conversation) AppendPair(userText, modelText string) {
	c.Turns = append(c.Turns,
		Turn{Role: RoleUser, Text: userText},
		Turn{Role: RoleModel, Text: modelText},
	)
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	return len(c.Turns)
}

// FirstText returns the text of the first turn, or "" when there is none.
func (c *Conversation) FirstText() string {
	if len(c.Turns) == 0 {
		return ""
	}
	return c.Turns[0].Text
}

// Record is the persisted JSON document for a conversation. The id is not
// stored inside the document; it is the storage key.
type Record struct {
	Messages []Turn `json:"messages"`
}

// Record returns the document to persist for c.
func (c *Conversation) Record() Record {
	turns := c.Turns
	if turns == nil {
		turns = []Turn{}
	}
	return Record{Messages: turns}
}

// =============================================================================
// LISTING
// =============================================================================

// DefaultSummary is shown for conversations without a readable first turn.
const DefaultSummary = "Conversation"

// SummaryLength is the number of runes kept from the first turn.
const SummaryLength = 80

// LastModifiedLayout is the minute-precision timestamp format used in listings.
const LastModifiedLayout = "2006-01-02 15:04"

// Summary is a listing entry. It is derived on every request, never stored.
type Summary struct {
	ID           string    `json:"id"`
	Summary      string    `json:"summary"`
	LastModified string    `json:"last_modified"`
	ModTime      time.Time `json:"-"`
}

// =============================================================================
// MODEL-FACING HISTORY
// =============================================================================

// ModelTurn is a history entry in the form the model collaborator consumes.
type ModelTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
