// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jeranaias/fireside/internal/config"
	"github.com/jeranaias/fireside/internal/conversation"
)

// defaultAnthropicMaxTokens is used when neither config nor the request sets
// an output limit; the Messages API requires one.
const defaultAnthropicMaxTokens = 1024

// AnthropicClient generates replies with the Anthropic Messages API.
type AnthropicClient struct {
	client   *anthropic.Client
	apiKey   string
	defaults config.ModelConfig
}

// NewAnthropicClient creates a client. Extra options are applied after the
// API key, so tests can inject an HTTP client.
func NewAnthropicClient(apiKey string, defaults config.ModelConfig, opts ...option.RequestOption) *AnthropicClient {
	apiKey = strings.TrimSpace(apiKey)
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	c := anthropic.NewClient(all...)
	return &AnthropicClient{client: &c, apiKey: apiKey, defaults: defaults}
}

func anthropicOptions(baseURL string, timeout time.Duration, maxRetries int) []option.RequestOption {
	var opts []option.RequestOption
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}
	if maxRetries > 0 {
		// The SDK counts retries after the first attempt.
		opts = append(opts, option.WithMaxRetries(maxRetries-1))
	}
	return opts
}

// Generate implements Generator.
func (c *AnthropicClient) Generate(ctx context.Context, prompt string, history []conversation.ModelTurn, settings *Settings) string {
	if c.apiKey == "" {
		return ErrorReply("%v", ErrNotConfigured)
	}

	r := settings.Resolve(c.defaults)
	maxTokens := int64(r.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(r.ModelID),
		MaxTokens: maxTokens,
		Messages:  buildAnthropicMessages(prompt, history),
	}
	if r.Temperature != nil {
		params.Temperature = anthropic.Float(*r.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		log.Printf("MODEL_ERROR | provider=anthropic model=%s key=%s error=%v", r.ModelID, keyFingerprint(c.apiKey), err)
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return ErrorReply("communicating with the AI model: HTTP %d", apiErr.StatusCode)
		}
		return ErrorReply("communicating with the AI model: %v", err)
	}

	if string(msg.StopReason) == "refusal" {
		log.Printf("MODEL_BLOCKED | provider=anthropic model=%s", r.ModelID)
		return ErrorReply("%v", ErrContentFiltered)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	if b.Len() == 0 {
		log.Printf("MODEL_EMPTY | provider=anthropic model=%s", r.ModelID)
		return ErrorReply("could not parse the model's response (%v)", ErrEmptyResponse)
	}

	log.Printf("MODEL_OK | provider=anthropic model=%s history=%d", r.ModelID, len(history))
	return b.String()
}

func buildAnthropicMessages(prompt string, history []conversation.ModelTurn) []anthropic.MessageParam {
	msgs := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, t := range history {
		if t.Role == conversation.RoleModel {
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Content)))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Content)))
		}
	}
	return append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)))
}
