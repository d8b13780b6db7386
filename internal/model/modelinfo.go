// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/rigchat/internal/util"
)

// ErrLimitExceeded is returned when a message sequence would not fit the
// model's context window.
var ErrLimitExceeded = errors.New("exceed max tokens limit")

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// TokensCountFactors describes how a provider accounts for tokens beyond the
// raw content: a fixed overhead per completed message and a safety bias added
// before comparing against the limit.
type TokensCountFactors struct {
	PerMessage int `json:"per_message" toml:"per_message"`
	Bias       int `json:"bias" toml:"bias"`
}

// ModelInfo identifies one model of one configured client.
type ModelInfo struct {
	// Client is the client name, e.g. "openai" or a configured alias.
	Client string `json:"client"`

	// Name is the model name sent to the provider.
	Name string `json:"name"`

	// Index is the position of the client in config.clients.
	Index int `json:"index"`

	// MaxTokens is the context window size; 0 means no ceiling.
	MaxTokens int `json:"max_tokens,omitempty"`

	TokensCountFactors TokensCountFactors `json:"tokens_count_factors"`
}

// NewModelInfo creates a model entry without a token ceiling.
func NewModelInfo(client, name string, index int) ModelInfo {
	return ModelInfo{Client: client, Name: name, Index: index}
}

// SetMaxTokens sets the context window. Zero or negative removes the ceiling.
func (m ModelInfo) SetMaxTokens(maxTokens int) ModelInfo {
	if maxTokens < 0 {
		maxTokens = 0
	}
	m.MaxTokens = maxTokens
	return m
}

// SetTokensCountFactors sets the per-message overhead and bias.
func (m ModelInfo) SetTokensCountFactors(perMessage, bias int) ModelInfo {
	m.TokensCountFactors = TokensCountFactors{PerMessage: perMessage, Bias: bias}
	return m
}

// ID returns the "client:name" identifier used on the command line.
func (m ModelInfo) ID() string {
	return m.Client + ":" + m.Name
}

// String implements fmt.Stringer.
func (m ModelInfo) String() string {
	return m.ID()
}

// ParseModelID splits a "client:name" identifier. A bare value without a
// colon is returned as the client with an empty model name.
func ParseModelID(id string) (client, name string) {
	client, name, _ = strings.Cut(id, ":")
	return client, name
}

// =============================================================================
// TOKEN ACCOUNTING
// =============================================================================

// MessagesTokens sums the estimated content tokens of all messages.
func (m ModelInfo) MessagesTokens(messages []Message) int {
	total := 0
	for _, msg := range messages {
		total += util.CountTokens(msg.Content)
	}
	return total
}

// TotalTokens adds the per-message overhead to the content tokens. Every
// completed message costs one overhead unit; a trailing user message is
// counted as well, so a sequence ending in a user turn pays for all messages
// and any other sequence pays for all but the last.
func (m ModelInfo) TotalTokens(messages []Message) int {
	if len(messages) == 0 {
		return 0
	}
	n := len(messages) - 1
	if messages[len(messages)-1].IsUser() {
		n = len(messages)
	}
	return n*m.TokensCountFactors.PerMessage + m.MessagesTokens(messages)
}

// MaxTokensLimit fails with ErrLimitExceeded when the total plus bias reaches
// the context window. Reaching it exactly also fails.
func (m ModelInfo) MaxTokensLimit(messages []Message) error {
	if m.MaxTokens == 0 {
		return nil
	}
	total := m.TotalTokens(messages) + m.TokensCountFactors.Bias
	if total >= m.MaxTokens {
		return fmt.Errorf("%w (%d >= %d for %s)", ErrLimitExceeded, total, m.MaxTokens, m.ID())
	}
	return nil
}
