// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/stream"
)

const (
	// DefaultClaudeURL is the Anthropic API base.
	DefaultClaudeURL = "https://api.anthropic.com/v1"

	anthropicVersion = "2023-06-01"

	// claudeMaxOutput is sent as max_tokens, which the messages API requires.
	claudeMaxOutput = 4096
)

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeRequest struct {
	Model       string          `json:"model"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature *float64        `json:"temperature,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// claudeEvent covers the stream event payloads this client reads.
type claudeEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type claudeProvider struct {
	shared *config.Shared
	extra  *config.ExtraConfig
	url    string
	apiKey string
	model  string
}

func initClaude(cc config.ClientConfig, shared *config.Shared) (Provider, error) {
	cfg := cc.Variant.(*config.ClaudeConfig)
	name := cc.Name()

	key, err := configValue(cfg.APIKey, name, "api_key")
	if err != nil {
		return nil, err
	}
	base := optionalValue(cfg.APIBase, name, "api_base")
	if base == "" {
		base = DefaultClaudeURL
	}

	return &claudeProvider{
		shared: shared,
		extra:  cfg.Extra,
		url:    joinURL(base, "messages"),
		apiKey: key,
		model:  shared.ModelInfo().Name,
	}, nil
}

func (p *claudeProvider) Config() (*config.Shared, *config.ExtraConfig) {
	return p.shared, p.extra
}

// buildClaudeBody moves system messages into the system field, which is where
// the messages API expects them.
func buildClaudeBody(modelName string, data SendData) claudeRequest {
	body := claudeRequest{
		Model:       modelName,
		MaxTokens:   claudeMaxOutput,
		Temperature: data.Temperature,
		Stream:      data.Stream,
	}
	var system []string
	for _, m := range data.Messages {
		if m.Role == model.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		body.Messages = append(body.Messages, claudeMessage{Role: m.Role.String(), Content: m.Content})
	}
	body.System = strings.Join(system, "\n\n")
	return body
}

func (p *claudeProvider) request(ctx context.Context, http *resty.Client, data SendData) *resty.Request {
	return http.R().
		SetContext(ctx).
		SetHeader("x-api-key", p.apiKey).
		SetHeader("anthropic-version", anthropicVersion).
		SetHeader("Content-Type", "application/json").
		SetBody(buildClaudeBody(p.model, data))
}

func (p *claudeProvider) Send(ctx context.Context, http *resty.Client, data SendData) (string, error) {
	resp, err := p.request(ctx, http, data).Post(p.url)
	if err != nil {
		return "", fmt.Errorf("claude request: %w", err)
	}
	if resp.IsError() {
		return "", errorFromBody(config.TypeClaude, resp.StatusCode(), resp.Body())
	}

	var out claudeResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decode claude response: %w", err)
	}
	var b strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

func (p *claudeProvider) SendStreaming(ctx context.Context, http *resty.Client, handler *stream.ReplyStreamHandler, data SendData) error {
	resp, err := p.request(ctx, http, data).
		SetHeader("Accept", "text/event-stream").
		SetDoNotParseResponse(true).
		Post(p.url)
	if err != nil {
		return fmt.Errorf("claude request: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		raw, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
		return errorFromBody(config.TypeClaude, resp.StatusCode(), raw)
	}

	return processClaudeStream(body, handler)
}

// processClaudeStream forwards text deltas until message_stop or EOF.
func processClaudeStream(body io.Reader, handler *stream.ReplyStreamHandler) error {
	reader := newSSEReader(body)
	for {
		eventType, data, err := reader.ReadEvent()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read claude stream: %w", err)
		}

		var ev claudeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		if ev.Type == "" {
			ev.Type = eventType
		}

		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" {
				if err := handler.Text(ev.Delta.Text); err != nil {
					return err
				}
			}
		case "message_stop":
			return nil
		case "error":
			return &APIError{Provider: config.TypeClaude, Code: ev.Error.Type, Message: ev.Error.Message}
		}
	}
}
