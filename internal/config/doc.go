// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and the shared runtime state
// for rigchat.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - --config flag
//   - $RIGCHAT_CONFIG_DIR/config.toml, then config.json
//   - ~/.rigchat/config.toml, then config.json
//   - Built-in defaults
//
// # Clients
//
// Providers are configured as a list of tables tagged by a "type" field:
//
//	model = "openai:gpt-4o-mini"
//
//	[[clients]]
//	type = "openai"
//	api_key = "sk-..."
//
//	[[clients]]
//	type = "ollama"
//	api_base = "http://localhost:11434"
//	models = [{ name = "llama3.1", max_tokens = 8192 }]
//
// Unrecognised types decode to UnknownConfig instead of failing the load; the
// client registry reports them when they are selected.
package config
