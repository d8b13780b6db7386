// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Client type tags accepted in the "type" field of a client table.
const (
	TypeOpenAI      = "openai"
	TypeAzureOpenAI = "azure-openai"
	TypeLocalAI     = "localai"
	TypeOpenRouter  = "openrouter"
	TypeOllama      = "ollama"
	TypeClaude      = "claude"
)

// =============================================================================
// SHARED CLIENT FIELDS
// =============================================================================

// ExtraConfig holds per-client network options.
type ExtraConfig struct {
	// Proxy overrides the environment proxy. "", "false" and "-" disable it.
	Proxy *string `json:"proxy,omitempty"`

	// ConnectTimeout in seconds; 0 uses the client default.
	ConnectTimeout int `json:"connect_timeout,omitempty"`
}

// Timeout returns the configured connect timeout, or 0 when unset.
func (e *ExtraConfig) Timeout() time.Duration {
	if e == nil || e.ConnectTimeout <= 0 {
		return 0
	}
	return time.Duration(e.ConnectTimeout) * time.Second
}

// ModelConfig declares a model a client offers.
type ModelConfig struct {
	Name      string `json:"name"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// CommonConfig carries the fields every client variant accepts.
type CommonConfig struct {
	// Name distinguishes several clients of the same type and prefixes the
	// environment variables consulted for secrets.
	Name   string        `json:"name,omitempty"`
	Models []ModelConfig `json:"models,omitempty"`
	Extra  *ExtraConfig  `json:"extra,omitempty"`
}

// Common returns the shared fields.
func (c *CommonConfig) Common() *CommonConfig {
	return c
}

// =============================================================================
// VARIANTS
// =============================================================================

// ClientVariant is implemented by each provider's configuration.
type ClientVariant interface {
	ClientType() string
	Common() *CommonConfig
}

// OpenAIConfig configures api.openai.com or a compatible endpoint.
type OpenAIConfig struct {
	CommonConfig
	APIKey         string `json:"api_key,omitempty"`
	APIBase        string `json:"api_base,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
}

func (*OpenAIConfig) ClientType() string { return TypeOpenAI }

// AzureOpenAIConfig configures an Azure OpenAI deployment. Models name the
// deployments and are required.
type AzureOpenAIConfig struct {
	CommonConfig
	APIBase    string `json:"api_base,omitempty"`
	APIKey     string `json:"api_key,omitempty"`
	APIVersion string `json:"api_version,omitempty"`
}

func (*AzureOpenAIConfig) ClientType() string { return TypeAzureOpenAI }

// LocalAIConfig configures a self-hosted OpenAI-compatible server.
type LocalAIConfig struct {
	CommonConfig
	APIBase      string `json:"api_base,omitempty"`
	APIKey       string `json:"api_key,omitempty"`
	ChatEndpoint string `json:"chat_endpoint,omitempty"`
}

func (*LocalAIConfig) ClientType() string { return TypeLocalAI }

// OpenRouterConfig configures openrouter.ai.
type OpenRouterConfig struct {
	CommonConfig
	APIKey  string `json:"api_key,omitempty"`
	APIBase string `json:"api_base,omitempty"`
}

func (*OpenRouterConfig) ClientType() string { return TypeOpenRouter }

// OllamaConfig configures a local Ollama server.
type OllamaConfig struct {
	CommonConfig
	APIBase string `json:"api_base,omitempty"`
}

func (*OllamaConfig) ClientType() string { return TypeOllama }

// ClaudeConfig configures the Anthropic messages API.
type ClaudeConfig struct {
	CommonConfig
	APIKey  string `json:"api_key,omitempty"`
	APIBase string `json:"api_base,omitempty"`
}

func (*ClaudeConfig) ClientType() string { return TypeClaude }

// UnknownConfig keeps a client table whose type is not recognised.
type UnknownConfig struct {
	CommonConfig
	Type string         `json:"-"`
	Raw  map[string]any `json:"-"`
}

func (u *UnknownConfig) ClientType() string { return u.Type }

var variantFactories = map[string]func() ClientVariant{
	TypeOpenAI:      func() ClientVariant { return &OpenAIConfig{} },
	TypeAzureOpenAI: func() ClientVariant { return &AzureOpenAIConfig{} },
	TypeLocalAI:     func() ClientVariant { return &LocalAIConfig{} },
	TypeOpenRouter:  func() ClientVariant { return &OpenRouterConfig{} },
	TypeOllama:      func() ClientVariant { return &OllamaConfig{} },
	TypeClaude:      func() ClientVariant { return &ClaudeConfig{} },
}

// =============================================================================
// CLIENT CONFIG UNION
// =============================================================================

// ClientConfig is one entry of the clients list, holding exactly one variant.
type ClientConfig struct {
	Variant ClientVariant
}

// Type returns the variant's type tag.
func (c ClientConfig) Type() string {
	if c.Variant == nil {
		return ""
	}
	return c.Variant.ClientType()
}

// Name returns the configured name, falling back to the type tag.
func (c ClientConfig) Name() string {
	if c.Variant == nil {
		return ""
	}
	if name := c.Variant.Common().Name; name != "" {
		return name
	}
	return c.Variant.ClientType()
}

// IsUnknown reports whether the entry carries an unrecognised type.
func (c ClientConfig) IsUnknown() bool {
	_, ok := c.Variant.(*UnknownConfig)
	return ok
}

// UnmarshalJSON dispatches on the "type" field.
func (c *ClientConfig) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("client entry: %w", err)
	}

	factory, ok := variantFactories[head.Type]
	if !ok {
		unknown := &UnknownConfig{Type: head.Type}
		if err := json.Unmarshal(data, &unknown.Raw); err != nil {
			return fmt.Errorf("client entry: %w", err)
		}
		// Best effort: keep the common fields usable for error messages.
		_ = json.Unmarshal(data, &unknown.CommonConfig)
		c.Variant = unknown
		return nil
	}

	variant := factory()
	if err := json.Unmarshal(data, variant); err != nil {
		return fmt.Errorf("client %q: %w", head.Type, err)
	}
	c.Variant = variant
	return nil
}

// MarshalJSON writes the variant back with its type tag.
func (c ClientConfig) MarshalJSON() ([]byte, error) {
	if c.Variant == nil {
		return []byte("null"), nil
	}
	if unknown, ok := c.Variant.(*UnknownConfig); ok {
		return json.Marshal(unknown.Raw)
	}

	body, err := json.Marshal(c.Variant)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	tag, _ := json.Marshal(c.Variant.ClientType())
	fields["type"] = tag
	return json.Marshal(fields)
}
