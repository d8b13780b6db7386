// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/logger"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/stream"
	"github.com/jeranaias/rigchat/internal/util"
)

// DryRunTokenDelay paces dry-run fragments.
const DryRunTokenDelay = 25 * time.Millisecond

// SendData is the outbound request payload.
type SendData struct {
	Messages    []model.Message
	Temperature *float64
	Stream      bool
}

// Provider is implemented once per provider API.
type Provider interface {
	// Config returns the shared runtime state and this client's network options.
	Config() (*config.Shared, *config.ExtraConfig)

	// Send performs one request and returns the whole reply.
	Send(ctx context.Context, http *resty.Client, data SendData) (string, error)

	// SendStreaming performs one request and forwards reply fragments to the
	// handler as they arrive.
	SendStreaming(ctx context.Context, http *resty.Client, handler *stream.ReplyStreamHandler, data SendData) error
}

// =============================================================================
// CLIENT
// =============================================================================

// Client adds the behavior common to every provider.
type Client struct {
	provider   Provider
	session    *stream.Session
	tokenDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithSession sets the streaming session controller.
func WithSession(s *stream.Session) Option {
	return func(c *Client) { c.session = s }
}

// WithTokenDelay overrides the dry-run pacing.
func WithTokenDelay(d time.Duration) Option {
	return func(c *Client) { c.tokenDelay = d }
}

// New wraps a provider.
func New(p Provider, opts ...Option) *Client {
	c := &Client{provider: p, tokenDelay: DryRunTokenDelay}
	for _, opt := range opts {
		opt(c)
	}
	if c.session == nil {
		c.session = stream.NewSession()
	}
	return c
}

// Provider returns the wrapped provider.
func (c *Client) Provider() Provider {
	return c.provider
}

// SendMessage sends content and returns the full reply. In dry-run mode the
// would-be request is echoed back without touching the network.
func (c *Client) SendMessage(ctx context.Context, content string) (string, error) {
	shared, extra := c.provider.Config()
	if shared.DryRun() {
		return shared.EchoMessages(content), nil
	}

	http, err := buildHTTPClient(extra)
	if err != nil {
		return "", err
	}
	data, err := prepareSendData(shared, content, false)
	if err != nil {
		return "", err
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("model", shared.ModelInfo().ID()).
		Int("messages", len(data.Messages)).
		Msg("sending request")

	reply, err := c.provider.Send(ctx, http, data)
	if err != nil {
		log.Error().Err(err).Str("model", shared.ModelInfo().ID()).Msg("request failed")
		return "", fmt.Errorf("failed to get answer: %w", err)
	}
	return reply, nil
}

// SendMessageStreaming sends content and streams the reply into handler. It
// returns nil when the user aborts or interrupts the session.
func (c *Client) SendMessageStreaming(ctx context.Context, content string, handler *stream.ReplyStreamHandler) error {
	shared, extra := c.provider.Config()

	_, err := c.session.Run(ctx, handler, func(ctx context.Context, h *stream.ReplyStreamHandler) error {
		if shared.DryRun() {
			return emitPaced(ctx, h, shared.EchoMessages(content), c.tokenDelay)
		}

		http, err := buildHTTPClient(extra)
		if err != nil {
			return err
		}
		data, err := prepareSendData(shared, content, true)
		if err != nil {
			return err
		}

		logger.FromContext(ctx).Debug().
			Str("model", shared.ModelInfo().ID()).
			Int("messages", len(data.Messages)).
			Msg("sending streaming request")

		return c.provider.SendStreaming(ctx, http, h, data)
	})
	return err
}

// prepareSendData builds the payload and checks it against the token limit
// before anything is sent.
func prepareSendData(shared *config.Shared, content string, streaming bool) (SendData, error) {
	messages := shared.BuildMessages(content)
	if err := shared.ModelInfo().MaxTokensLimit(messages); err != nil {
		return SendData{}, err
	}
	return SendData{
		Messages:    messages,
		Temperature: shared.Temperature(),
		Stream:      streaming,
	}, nil
}

// emitPaced forwards text token by token, one every delay.
func emitPaced(ctx context.Context, h *stream.ReplyStreamHandler, text string, delay time.Duration) error {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if delay > 0 {
		limiter = rate.NewLimiter(rate.Every(delay), 1)
		// Start with an empty bucket so the first token waits too.
		limiter.Allow()
	}
	for _, token := range util.Tokenize(text) {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		if err := h.Text(token); err != nil {
			return err
		}
	}
	return nil
}
