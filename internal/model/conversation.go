// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxMessages is the maximum number of messages to keep in conversation history.
// When exceeded, the oldest turns are pruned.
const MaxMessages = 1000

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds the chat history of one REPL session. It lives only in
// memory and is safe for concurrent use.
type Conversation struct {
	ID        string
	CreatedAt time.Time

	mu           sync.RWMutex
	systemPrompt string
	messages     []Message
}

// NewConversation creates an empty conversation with a fresh ID.
func NewConversation(systemPrompt string) *Conversation {
	return &Conversation{
		ID:           uuid.NewString(),
		CreatedAt:    time.Now(),
		systemPrompt: systemPrompt,
	}
}

// SystemPrompt returns the prompt prepended to every request.
func (c *Conversation) SystemPrompt() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.systemPrompt
}

// SetSystemPrompt replaces the system prompt. History is kept.
func (c *Conversation) SetSystemPrompt(prompt string) {
	c.mu.Lock()
	c.systemPrompt = prompt
	c.mu.Unlock()
}

// BuildMessages returns the message sequence for a new user input: the system
// prompt (if any), the recorded history and finally content as a user message.
// The conversation itself is not modified.
func (c *Conversation) BuildMessages(content string) []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Message, 0, len(c.messages)+2)
	if c.systemPrompt != "" {
		out = append(out, NewSystemMessage(c.systemPrompt))
	}
	out = append(out, c.messages...)
	return append(out, NewUserMessage(content))
}

// AddTurn records a completed exchange.
func (c *Conversation) AddTurn(input, reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, NewUserMessage(input), NewAssistantMessage(reply))
	c.pruneOldMessages()
}

// Messages returns a copy of the recorded history.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of recorded messages.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Clear drops the history but keeps the system prompt.
func (c *Conversation) Clear() {
	c.mu.Lock()
	c.messages = nil
	c.mu.Unlock()
}

// pruneOldMessages drops whole user/assistant turns from the front until the
// history fits MaxMessages. Caller holds the lock.
func (c *Conversation) pruneOldMessages() {
	excess := len(c.messages) - MaxMessages
	if excess <= 0 {
		return
	}
	if excess%2 == 1 {
		excess++
	}
	if excess > len(c.messages) {
		excess = len(c.messages)
	}
	c.messages = append([]Message(nil), c.messages[excess:]...)
}
