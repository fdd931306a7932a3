// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/fireside/internal/config"
	"github.com/jeranaias/fireside/internal/conversation"
)

type fakeTransport struct {
	status int
	body   string
	sent   []byte
}

func (f *fakeTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Body != nil {
		f.sent, _ = io.ReadAll(r.Body)
	}
	resp := &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(bytes.NewReader([]byte(f.body))),
		Header:     make(http.Header),
		Request:    r,
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}

func newTestAnthropic(rt http.RoundTripper) *AnthropicClient {
	return NewAnthropicClient("test-key", config.ModelConfig{
		Provider:     config.ProviderAnthropic,
		DefaultModel: "claude-test",
	},
		option.WithHTTPClient(&http.Client{Transport: rt}),
		option.WithMaxRetries(0),
	)
}

type sentRequest struct {
	Model       string   `json:"model"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"messages"`
}

func TestAnthropic_GenerateJoinsTextBlocks(t *testing.T) {
	ft := &fakeTransport{status: 200, body: `{
		"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
		"content": [{"type": "text", "text": "hello "}, {"type": "text", "text": "there"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 3, "output_tokens": 2}
	}`}
	c := newTestAnthropic(ft)
	temp := 0.5

	reply := c.Generate(context.Background(), "next", []conversation.ModelTurn{
		{Role: conversation.RoleUser, Content: "q"},
		{Role: conversation.RoleModel, Content: "a"},
	}, &Settings{Temperature: &temp})

	assert.Equal(t, "hello there", reply)

	var sent sentRequest
	require.NoError(t, json.Unmarshal(ft.sent, &sent))
	assert.Equal(t, "claude-test", sent.Model)
	assert.Equal(t, defaultAnthropicMaxTokens, sent.MaxTokens)
	require.NotNil(t, sent.Temperature)
	assert.InDelta(t, 0.5, *sent.Temperature, 1e-9)
	require.Len(t, sent.Messages, 3)
	assert.Equal(t, "user", sent.Messages[0].Role)
	assert.Equal(t, "assistant", sent.Messages[1].Role)
	assert.Equal(t, "user", sent.Messages[2].Role)
	assert.Equal(t, "next", sent.Messages[2].Content[0].Text)
}

func TestAnthropic_EmptyContentIsError(t *testing.T) {
	c := newTestAnthropic(&fakeTransport{status: 200, body: `{"content":[],"role":"assistant"}`})
	reply := c.Generate(context.Background(), "x", nil, nil)
	assert.True(t, IsErrorReply(reply))
	assert.Contains(t, reply, "could not parse")
}

func TestAnthropic_APIErrorIsMarker(t *testing.T) {
	c := newTestAnthropic(&fakeTransport{
		status: 401,
		body:   `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
	})
	reply := c.Generate(context.Background(), "x", nil, nil)
	assert.True(t, IsErrorReply(reply))
	assert.Contains(t, reply, "401")
	assert.NotContains(t, reply, "test-key")
}

func TestAnthropic_NotConfigured(t *testing.T) {
	c := NewAnthropicClient("", config.ModelConfig{})
	reply := c.Generate(context.Background(), "x", nil, nil)
	assert.True(t, IsErrorReply(reply))
}
