// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, messages and
// the models they are sent to.
//
// # Key Types
//
//   - Message: a role (user, assistant, system) plus text content
//   - Conversation: ordered in-memory message history for one REPL session
//   - ModelInfo: a client/model pair with its token accounting convention
//   - Role: message role enumeration
//
// # Token Accounting
//
// ModelInfo estimates how many tokens a message sequence costs and refuses
// sequences that would not fit the model's context window:
//
//	info := model.NewModelInfo("openai", "gpt-4o-mini", 0).
//	    SetMaxTokens(128000).
//	    SetTokensCountFactors(5, 2)
//	if err := info.MaxTokensLimit(messages); err != nil {
//	    // errors.Is(err, model.ErrLimitExceeded)
//	}
package model
