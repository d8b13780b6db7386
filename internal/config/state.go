// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// SHARED RUNTIME STATE
// =============================================================================

// Shared is the runtime state every client reads: the loaded configuration,
// the selected model and the current conversation. Safe for concurrent use.
type Shared struct {
	mu           sync.RWMutex
	cfg          *Config
	modelInfo    model.ModelInfo
	conversation *model.Conversation
}

// NewShared wraps a loaded configuration.
func NewShared(cfg *Config) *Shared {
	if cfg == nil {
		cfg = Default()
	}
	return &Shared{
		cfg:          cfg,
		conversation: model.NewConversation(cfg.Prompt),
	}
}

// Config returns the loaded configuration. Callers must not modify it.
func (s *Shared) Config() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// ModelInfo returns the selected model.
func (s *Shared) ModelInfo() model.ModelInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modelInfo
}

// SetModelInfo selects a model.
func (s *Shared) SetModelInfo(info model.ModelInfo) {
	s.mu.Lock()
	s.modelInfo = info
	s.mu.Unlock()
}

// DryRun reports whether requests are echoed instead of sent.
func (s *Shared) DryRun() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.DryRun
}

// SetDryRun toggles dry-run mode.
func (s *Shared) SetDryRun(on bool) {
	s.mu.Lock()
	s.cfg.DryRun = on
	s.mu.Unlock()
}

// Temperature returns the configured sampling temperature, or nil.
func (s *Shared) Temperature() *float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg.Temperature == nil {
		return nil
	}
	t := *s.cfg.Temperature
	return &t
}

// Conversation returns the session history.
func (s *Shared) Conversation() *model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversation
}

// BuildMessages returns the messages to send for a new user input.
func (s *Shared) BuildMessages(content string) []model.Message {
	return s.Conversation().BuildMessages(content)
}

// EchoMessages renders what would be sent for content, as shown in dry-run
// mode. Without a system prompt or history it is content itself.
func (s *Shared) EchoMessages(content string) string {
	conv := s.Conversation()
	prompt := conv.SystemPrompt()
	if prompt == "" && conv.Len() == 0 {
		return content
	}

	var b strings.Builder
	if prompt != "" {
		b.WriteString(prompt)
		b.WriteString("\n\n")
	}
	for _, msg := range conv.Messages() {
		fmt.Fprintf(&b, "%s: %s\n\n", msg.Role.DisplayName(), msg.Content)
	}
	b.WriteString(content)
	return b.String()
}
