// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package client sends conversations to language-model providers.
//
// Every provider implements Provider and is registered in a fixed, ordered
// table keyed by its configuration type tag. Init walks that table for the
// selected model and wraps the matching Provider in a Client, which adds the
// shared behavior: dry-run echo, token limit checks, transport construction
// and the cancellable streaming session.
//
// # Providers
//
//   - openai, azure-openai, localai, openrouter: OpenAI chat completions (SSE)
//   - ollama: Ollama /api/chat (newline-delimited JSON)
//   - claude: Anthropic messages API (typed SSE events)
//
// # Secrets and network options
//
// A secret such as api_key is taken from the client configuration, else from
// the environment variable NAME_FIELD built from the client name (for
// example OPENAI_API_KEY or MYAZURE_API_BASE). Proxies come from extra.proxy,
// else HTTPS_PROXY, else ALL_PROXY. The connect timeout defaults to 10s.
//
// Adding a provider means one Provider implementation and one registry row.
package client
