// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides the hosted-model collaborator used by the chat
// orchestrator.
//
// A Generator turns a prompt plus optional history into reply text. It never
// returns a Go error: any failure (auth, quota, blocked content, malformed
// response, transport) comes back as text starting with ErrorMarker, and
// callers tell success from failure by that prefix alone.
//
// # Providers
//
//   - OpenRouterClient: OpenAI-style chat completions over plain HTTP
//   - AnthropicClient: the Anthropic Messages API via anthropic-sdk-go
//
// # Usage
//
//	gen, err := cloud.New(cfg.Model)
//	reply := gen.Generate(ctx, "hello", nil, nil)
//	if cloud.IsErrorReply(reply) {
//	    // reply carries the failure detail
//	}
//
// # Security
//
// API keys are never logged; a short SHA-256 fingerprint is used instead.
package cloud
