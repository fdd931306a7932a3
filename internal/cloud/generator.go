// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/fireside/internal/config"
	"github.com/jeranaias/fireside/internal/conversation"
)

// Generator produces a model reply. history is nil when the conversation has
// no prior turns; an empty non-nil slice is treated the same way.
// Failures are reported in-band with ErrorMarker.
type Generator interface {
	Generate(ctx context.Context, prompt string, history []conversation.ModelTurn, settings *Settings) string
}

// New builds the Generator for cfg.Provider.
func New(cfg config.ModelConfig) (Generator, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second

	switch strings.ToLower(cfg.Provider) {
	case "", config.ProviderOpenRouter:
		c := NewOpenRouterClient(cfg.OpenRouterKey, cfg).WithMaxRetries(cfg.MaxRetries)
		if cfg.BaseURL != "" {
			c.WithBaseURL(cfg.BaseURL)
		}
		if timeout > 0 {
			c.WithTimeout(timeout)
		}
		return c, nil
	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg.AnthropicKey, cfg, anthropicOptions(cfg.BaseURL, timeout, cfg.MaxRetries)...), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

// keyFingerprint identifies an API key in logs without exposing it.
func keyFingerprint(key string) string {
	if key == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:4])
}
