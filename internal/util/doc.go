// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides string and token helpers shared by the renderer,
// the clients and the REPL.
//
// # Key Functions
//
// Display:
//   - DisplayWidth: terminal column width, ignoring ANSI escape sequences
//   - SplitLineTail: split text at its last newline
//   - TruncateRunes, TruncateWidth: UTF-8 safe truncation for previews
//
// Tokens:
//   - Tokenize: split text into token-sized pieces that concatenate back to the input
//   - CountTokens: cl100k_base token count used for context limit checks
//   - EstimateTokens: vocabulary-free fallback estimate
//
// # Usage
//
//	head, tail := util.SplitLineTail(buffer + text)
//	rows := (util.DisplayWidth(tail) + columns - 1) / columns
package util
