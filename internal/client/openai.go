// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/stream"
)

// Default endpoints for the OpenAI-compatible family.
const (
	DefaultOpenAIURL       = "https://api.openai.com/v1"
	DefaultOpenRouterURL   = "https://openrouter.ai/api/v1"
	DefaultAzureAPIVersion = "2024-02-01"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

type chatRequest struct {
	Model       string          `json:"model,omitempty"`
	Messages    []model.Message `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// streamChunk is one "data:" payload of a streamed completion.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error json.RawMessage `json:"error,omitempty"`
}

func (c *streamChunk) content() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// =============================================================================
// PROVIDER
// =============================================================================

// openAICompatible speaks the chat completions API. openai, azure-openai,
// localai and openrouter differ only in URL, auth header and extra headers.
type openAICompatible struct {
	shared  *config.Shared
	extra   *config.ExtraConfig
	kind    string
	url     string
	model   string
	headers map[string]string
}

func (p *openAICompatible) Config() (*config.Shared, *config.ExtraConfig) {
	return p.shared, p.extra
}

func (p *openAICompatible) request(ctx context.Context, http *resty.Client, data SendData) *resty.Request {
	return http.R().
		SetContext(ctx).
		SetHeaders(p.headers).
		SetHeader("Content-Type", "application/json").
		SetBody(chatRequest{
			Model:       p.model,
			Messages:    data.Messages,
			Temperature: data.Temperature,
			Stream:      data.Stream,
		})
}

func (p *openAICompatible) Send(ctx context.Context, http *resty.Client, data SendData) (string, error) {
	resp, err := p.request(ctx, http, data).Post(p.url)
	if err != nil {
		return "", fmt.Errorf("%s request: %w", p.kind, err)
	}
	if resp.IsError() {
		return "", errorFromBody(p.kind, resp.StatusCode(), resp.Body())
	}

	var out chatResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decode %s response: %w", p.kind, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%s response has no choices", p.kind)
	}
	return out.Choices[0].Message.Content, nil
}

func (p *openAICompatible) SendStreaming(ctx context.Context, http *resty.Client, handler *stream.ReplyStreamHandler, data SendData) error {
	resp, err := p.request(ctx, http, data).
		SetHeader("Accept", "text/event-stream").
		SetDoNotParseResponse(true).
		Post(p.url)
	if err != nil {
		return fmt.Errorf("%s request: %w", p.kind, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		raw, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
		return errorFromBody(p.kind, resp.StatusCode(), raw)
	}

	return p.processStream(body, handler)
}

// processStream forwards SSE deltas until [DONE], a finish reason or EOF.
func (p *openAICompatible) processStream(body io.Reader, handler *stream.ReplyStreamHandler) error {
	reader := newSSEReader(body)
	for {
		_, data, err := reader.ReadEvent()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read %s stream: %w", p.kind, err)
		}
		if bytes.Equal(bytes.TrimSpace(data), []byte("[DONE]")) {
			return nil
		}

		var chunk streamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			// Skip malformed chunks
			continue
		}
		if len(chunk.Error) > 0 && string(chunk.Error) != "null" {
			return errorFromBody(p.kind, 0, data)
		}
		if err := handler.Text(chunk.content()); err != nil {
			return err
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].FinishReason != nil && *chunk.Choices[0].FinishReason != "" {
			return nil
		}
	}
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

func bearer(key string) map[string]string {
	if key == "" {
		return map[string]string{}
	}
	return map[string]string{"Authorization": "Bearer " + key}
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func initOpenAI(cc config.ClientConfig, shared *config.Shared) (Provider, error) {
	cfg := cc.Variant.(*config.OpenAIConfig)
	name := cc.Name()

	key, err := configValue(cfg.APIKey, name, "api_key")
	if err != nil {
		return nil, err
	}
	base := optionalValue(cfg.APIBase, name, "api_base")
	if base == "" {
		base = DefaultOpenAIURL
	}

	headers := bearer(key)
	if org := optionalValue(cfg.OrganizationID, name, "organization_id"); org != "" {
		headers["OpenAI-Organization"] = org
	}

	return &openAICompatible{
		shared:  shared,
		extra:   cfg.Extra,
		kind:    config.TypeOpenAI,
		url:     joinURL(base, "chat/completions"),
		model:   shared.ModelInfo().Name,
		headers: headers,
	}, nil
}

func initAzureOpenAI(cc config.ClientConfig, shared *config.Shared) (Provider, error) {
	cfg := cc.Variant.(*config.AzureOpenAIConfig)
	name := cc.Name()

	base, err := configValue(cfg.APIBase, name, "api_base")
	if err != nil {
		return nil, err
	}
	key, err := configValue(cfg.APIKey, name, "api_key")
	if err != nil {
		return nil, err
	}
	version := cfg.APIVersion
	if version == "" {
		version = DefaultAzureAPIVersion
	}

	deployment := shared.ModelInfo().Name
	endpoint := joinURL(base, "openai/deployments/"+url.PathEscape(deployment)+"/chat/completions") +
		"?api-version=" + url.QueryEscape(version)

	return &openAICompatible{
		shared:  shared,
		extra:   cfg.Extra,
		kind:    config.TypeAzureOpenAI,
		url:     endpoint,
		headers: map[string]string{"api-key": key},
	}, nil
}

func initLocalAI(cc config.ClientConfig, shared *config.Shared) (Provider, error) {
	cfg := cc.Variant.(*config.LocalAIConfig)
	name := cc.Name()

	base, err := configValue(cfg.APIBase, name, "api_base")
	if err != nil {
		return nil, err
	}
	endpoint := cfg.ChatEndpoint
	if endpoint == "" {
		endpoint = "chat/completions"
	}

	return &openAICompatible{
		shared:  shared,
		extra:   cfg.Extra,
		kind:    config.TypeLocalAI,
		url:     joinURL(base, endpoint),
		model:   shared.ModelInfo().Name,
		headers: bearer(optionalValue(cfg.APIKey, name, "api_key")),
	}, nil
}

func initOpenRouter(cc config.ClientConfig, shared *config.Shared) (Provider, error) {
	cfg := cc.Variant.(*config.OpenRouterConfig)
	name := cc.Name()

	key, err := configValue(cfg.APIKey, name, "api_key")
	if err != nil {
		return nil, err
	}
	base := optionalValue(cfg.APIBase, name, "api_base")
	if base == "" {
		base = DefaultOpenRouterURL
	}

	headers := bearer(key)
	headers["X-Title"] = "rigchat"

	return &openAICompatible{
		shared:  shared,
		extra:   cfg.Extra,
		kind:    config.TypeOpenRouter,
		url:     joinURL(base, "chat/completions"),
		model:   shared.ModelInfo().Name,
		headers: headers,
	}, nil
}
