// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for fireside.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, and validation. The configuration is
// loaded once at startup and passed to constructors; nothing in the module
// reads it from a global.
//
// # Key Types
//
//   - Config: complete configuration
//   - ServerConfig: listen address, static UI directory, rate limits, CORS
//   - StorageConfig: byte-store backend and its locations
//   - ModelConfig: model provider, default model and generation settings
//   - HistoryConfig: listing behaviour
//
// # Configuration Precedence
//
//   - Environment variables (FIRESIDE_*)
//   - ~/.fireside/config.toml
//   - ~/.fireside/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	bs, err := storage.Open(cfg.Storage)
package config
