// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/stream"
)

// =============================================================================
// REGISTRY
// =============================================================================

// registration binds a config type tag to a provider constructor and the
// models that provider offers by default.
type registration struct {
	Type     string
	Init     func(cc config.ClientConfig, shared *config.Shared) (Provider, error)
	Defaults []config.ModelConfig
	Factors  model.TokensCountFactors
}

// registry is walked in order; the first matching row wins.
var registry = []registration{
	{
		Type: config.TypeOpenAI,
		Init: initOpenAI,
		Defaults: []config.ModelConfig{
			{Name: "gpt-4o-mini", MaxTokens: 128000},
			{Name: "gpt-4o", MaxTokens: 128000},
			{Name: "gpt-4-turbo", MaxTokens: 128000},
			{Name: "gpt-3.5-turbo", MaxTokens: 16385},
		},
		Factors: model.TokensCountFactors{PerMessage: 5, Bias: 2},
	},
	{
		Type:    config.TypeAzureOpenAI,
		Init:    initAzureOpenAI,
		Factors: model.TokensCountFactors{PerMessage: 5, Bias: 2},
	},
	{
		Type:    config.TypeLocalAI,
		Init:    initLocalAI,
		Factors: model.TokensCountFactors{PerMessage: 5, Bias: 2},
	},
	{
		Type: config.TypeOpenRouter,
		Init: initOpenRouter,
		Defaults: []config.ModelConfig{
			{Name: "openrouter/auto"},
			{Name: "anthropic/claude-3.5-sonnet", MaxTokens: 200000},
			{Name: "openai/gpt-4o", MaxTokens: 128000},
			{Name: "meta-llama/llama-3-70b-instruct", MaxTokens: 8192},
		},
		Factors: model.TokensCountFactors{PerMessage: 5, Bias: 2},
	},
	{
		Type: config.TypeOllama,
		Init: initOllama,
		Defaults: []config.ModelConfig{
			{Name: DefaultOllamaModel, MaxTokens: 32768},
		},
		Factors: model.TokensCountFactors{PerMessage: 5, Bias: 2},
	},
	{
		Type: config.TypeClaude,
		Init: initClaude,
		Defaults: []config.ModelConfig{
			{Name: "claude-3-5-sonnet-latest", MaxTokens: 200000},
			{Name: "claude-3-5-haiku-latest", MaxTokens: 200000},
			{Name: "claude-3-opus-latest", MaxTokens: 200000},
		},
		Factors: model.TokensCountFactors{PerMessage: 5, Bias: 2},
	},
}

func lookup(clientType string) (registration, bool) {
	for _, r := range registry {
		if r.Type == clientType {
			return r, true
		}
	}
	return registration{}, false
}

// Types returns the supported client type tags in registry order.
func Types() []string {
	out := make([]string, 0, len(registry))
	for _, r := range registry {
		out = append(out, r.Type)
	}
	return out
}

// =============================================================================
// MODELS
// =============================================================================

// listClientModels returns the models of one client: its configured models,
// or the provider defaults when none are configured.
func listClientModels(r registration, cc config.ClientConfig, index int) []model.ModelInfo {
	declared := cc.Variant.Common().Models
	if len(declared) == 0 {
		declared = r.Defaults
	}
	name := cc.Name()
	out := make([]model.ModelInfo, 0, len(declared))
	for _, m := range declared {
		out = append(out, model.NewModelInfo(name, m.Name, index).
			SetMaxTokens(m.MaxTokens).
			SetTokensCountFactors(r.Factors.PerMessage, r.Factors.Bias))
	}
	return out
}

// ListModels returns every model of every recognised client, in config order.
func ListModels(cfg *config.Config) []model.ModelInfo {
	var out []model.ModelInfo
	for i, cc := range cfg.Clients {
		if cc.Variant == nil {
			continue
		}
		r, ok := lookup(cc.Type())
		if !ok {
			continue
		}
		out = append(out, listClientModels(r, cc, i)...)
	}
	return out
}

// SelectModel resolves id ("client:name", a bare client name, or empty for
// the first available model) and stores it in shared.
//
// A model name not listed for a recognised client is accepted as is. A client
// with an unrecognised type is selected too, and fails later in Init.
func SelectModel(shared *config.Shared, id string) error {
	cfg := shared.Config()
	models := ListModels(cfg)

	if id == "" {
		if len(models) == 0 {
			if shared.DryRun() {
				shared.SetModelInfo(echoModel)
				return nil
			}
			return ErrNoClients
		}
		shared.SetModelInfo(models[0])
		return nil
	}

	clientName, modelName := model.ParseModelID(id)
	for _, m := range models {
		if m.Client != clientName {
			continue
		}
		if modelName == "" || m.Name == modelName {
			shared.SetModelInfo(m)
			return nil
		}
	}

	for i, cc := range cfg.Clients {
		if cc.Name() != clientName {
			continue
		}
		info := model.NewModelInfo(clientName, modelName, i)
		if r, ok := lookup(cc.Type()); ok {
			info = info.SetTokensCountFactors(r.Factors.PerMessage, r.Factors.Bias)
		}
		shared.SetModelInfo(info)
		return nil
	}

	if shared.DryRun() && clientName == echoModel.Client {
		shared.SetModelInfo(echoModel)
		return nil
	}
	return fmt.Errorf("%w '%s'", ErrUnknownModel, id)
}

// =============================================================================
// DISPATCH
// =============================================================================

// Init builds the client for the selected model.
func Init(shared *config.Shared, opts ...Option) (*Client, error) {
	info := shared.ModelInfo()
	if info == echoModel {
		return New(&echoProvider{shared: shared}, opts...), nil
	}

	clients := shared.Config().Clients
	if info.Index < 0 || info.Index >= len(clients) {
		return nil, &NoSuchClientError{Client: info.Client, Index: info.Index}
	}
	cc := clients[info.Index]

	for _, r := range registry {
		if cc.Variant == nil || r.Type != cc.Type() || cc.Name() != info.Client {
			continue
		}
		p, err := r.Init(cc, shared)
		if err != nil {
			return nil, err
		}
		return New(p, opts...), nil
	}
	return nil, &NoSuchClientError{Client: info.Client, Index: info.Index}
}

// =============================================================================
// DRY-RUN ECHO
// =============================================================================

// echoModel is selected in dry-run mode when no client is configured.
var echoModel = model.NewModelInfo("dry-run", "echo", -1)

var errEchoOnly = errors.New("the dry-run client cannot send requests")

// echoProvider serves dry-run mode without any configured client. Client
// intercepts dry-run before reaching Send.
type echoProvider struct {
	shared *config.Shared
}

func (p *echoProvider) Config() (*config.Shared, *config.ExtraConfig) {
	return p.shared, nil
}

func (p *echoProvider) Send(context.Context, *resty.Client, SendData) (string, error) {
	return "", errEchoOnly
}

func (p *echoProvider) SendStreaming(context.Context, *resty.Client, *stream.ReplyStreamHandler, SendData) error {
	return errEchoOnly
}
