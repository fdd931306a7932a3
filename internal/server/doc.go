// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the chat orchestrator and the conversation store
// over HTTP.
//
// Routes:
//
//	POST /chat                  run one turn
//	GET  /conversations         list stored conversations, most recent first
//	GET  /conversations/{id}    full history of one conversation
//	GET  /conversations/{id}/export?format=markdown|json|text
//	GET  /health                liveness and build information
//	GET  /hello                 greeting
//	GET  /                      chat UI (index.html from the static directory)
//	GET  /static/...            static assets
//
// Every request passes through panic recovery, security headers, request
// logging, per-IP rate limiting and CORS handling.
package server
