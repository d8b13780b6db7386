// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-resty/resty/v2"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/stream"
)

// DefaultOllamaURL is where a local Ollama server listens.
const DefaultOllamaURL = "http://localhost:11434"

// DefaultOllamaModel is offered when no models are configured.
const DefaultOllamaModel = "qwen2.5-coder:14b"

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []model.Message `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

// ollamaChunk is a /api/chat response object. Streaming sends one per line.
type ollamaChunk struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

type ollamaProvider struct {
	shared *config.Shared
	extra  *config.ExtraConfig
	url    string
	model  string
}

func initOllama(cc config.ClientConfig, shared *config.Shared) (Provider, error) {
	cfg := cc.Variant.(*config.OllamaConfig)
	base := optionalValue(cfg.APIBase, cc.Name(), "api_base")
	if base == "" {
		base = DefaultOllamaURL
	}
	return &ollamaProvider{
		shared: shared,
		extra:  cfg.Extra,
		url:    joinURL(base, "api/chat"),
		model:  shared.ModelInfo().Name,
	}, nil
}

func (p *ollamaProvider) Config() (*config.Shared, *config.ExtraConfig) {
	return p.shared, p.extra
}

func (p *ollamaProvider) request(ctx context.Context, http *resty.Client, data SendData) *resty.Request {
	body := ollamaRequest{
		Model:    p.model,
		Messages: data.Messages,
		Stream:   data.Stream,
	}
	if data.Temperature != nil {
		body.Options = &ollamaOptions{Temperature: data.Temperature}
	}
	return http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
}

func (p *ollamaProvider) Send(ctx context.Context, http *resty.Client, data SendData) (string, error) {
	resp, err := p.request(ctx, http, data).Post(p.url)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	if resp.IsError() {
		return "", errorFromBody(config.TypeOllama, resp.StatusCode(), resp.Body())
	}

	var out ollamaChunk
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	if out.Error != "" {
		return "", &APIError{Provider: config.TypeOllama, Message: out.Error}
	}
	return out.Message.Content, nil
}

func (p *ollamaProvider) SendStreaming(ctx context.Context, http *resty.Client, handler *stream.ReplyStreamHandler, data SendData) error {
	resp, err := p.request(ctx, http, data).
		SetDoNotParseResponse(true).
		Post(p.url)
	if err != nil {
		return fmt.Errorf("ollama request: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		raw, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
		return errorFromBody(config.TypeOllama, resp.StatusCode(), raw)
	}

	return processOllamaStream(body, handler)
}

// processOllamaStream forwards message content line by line until done.
func processOllamaStream(body io.Reader, handler *stream.ReplyStreamHandler) error {
	lines := newLineReader(body)
	for {
		line, err := lines.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read ollama stream: %w", err)
		}

		var chunk ollamaChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			// Skip malformed lines
			continue
		}
		if chunk.Error != "" {
			return &APIError{Provider: config.TypeOllama, Message: chunk.Error}
		}
		if err := handler.Text(chunk.Message.Content); err != nil {
			return err
		}
		if chunk.Done {
			return nil
		}
	}
}
