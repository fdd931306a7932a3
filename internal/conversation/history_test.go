// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatHistory_PreservesOrder(t *testing.T) {
	turns := []Turn{
		{Role: RoleUser, Text: "hi"},
		{Role: RoleModel, Text: "hello"},
		{Role: RoleUser, Text: "how are you"},
		{Role: RoleModel, Text: "fine"},
	}

	got := FormatHistory(turns)

	require.Len(t, got, 4)
	assert.Equal(t, ModelTurn{Role: RoleUser, Content: "hi"}, got[0])
	assert.Equal(t, ModelTurn{Role: RoleModel, Content: "hello"}, got[1])
	assert.Equal(t, ModelTurn{Role: RoleUser, Content: "how are you"}, got[2])
	assert.Equal(t, ModelTurn{Role: RoleModel, Content: "fine"}, got[3])
}

func TestFormatHistory_DropsMalformed(t *testing.T) {
	turns := []Turn{
		{Role: "user", Text: "a"},
		{Role: "", Text: "orphan"},
		{Role: "model", Text: "b"},
		{Role: "user", Text: ""},
	}

	got, skipped := FormatHistoryReport(turns)

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Content)
	assert.Equal(t, "b", got[1].Content)
	require.Len(t, skipped, 2)
	assert.Equal(t, 1, skipped[0].Index)
	assert.Equal(t, "missing role", skipped[0].Reason)
	assert.Equal(t, 3, skipped[1].Index)
	assert.Equal(t, "missing text", skipped[1].Reason)
}

func TestFormatHistory_CoercesRoles(t *testing.T) {
	turns := []Turn{
		{Role: "MODEL", Text: "x"},
		{Role: "Model", Text: "y"},
		{Role: "assistant", Text: "z"},
		{Role: "system", Text: "w"},
	}

	got := FormatHistory(turns)

	require.Len(t, got, 4)
	assert.Equal(t, RoleModel, got[0].Role)
	assert.Equal(t, RoleModel, got[1].Role)
	assert.Equal(t, RoleUser, got[2].Role)
	assert.Equal(t, RoleUser, got[3].Role)
}

func TestFormatHistory_Empty(t *testing.T) {
	assert.Empty(t, FormatHistory(nil))
	assert.Empty(t, FormatHistory([]Turn{{Role: "", Text: ""}}))
}

func TestConversation_AppendPair(t *testing.T) {
	c := New("abc")
	c.AppendPair("q1", "a1")
	c.AppendPair("q2", "a2")

	require.Equal(t, 4, c.Len())
	assert.Equal(t, "q1", c.FirstText())
	assert.Equal(t, RoleUser, c.Turns[2].Role)
	assert.Equal(t, RoleModel, c.Turns[3].Role)
	assert.Len(t, c.Record().Messages, 4)
}

func TestConversation_RecordNeverNil(t *testing.T) {
	c := &Conversation{ID: "x"}
	assert.NotNil(t, c.Record().Messages)
	assert.Equal(t, "", c.FirstText())
}
