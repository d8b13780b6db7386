// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/stream"
)

func writeSSE(w http.ResponseWriter, lines ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	for _, line := range lines {
		fmt.Fprint(w, line)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func initSelected(t *testing.T, shared *config.Shared, id string) *Client {
	t.Helper()
	require.NoError(t, SelectModel(shared, id))
	c, err := Init(shared, WithSession(testSession()))
	require.NoError(t, err)
	return c
}

// =============================================================================
// OPENAI FAMILY
// =============================================================================

func TestOpenAISend(t *testing.T) {
	clearProxyEnv(t)
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"Hi there"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	temp := 0.3
	shared := newShared(openaiClient("", srv.URL+"/v1"))
	shared.Config().Temperature = &temp
	shared.Conversation().SetSystemPrompt("be kind")
	c := initSelected(t, shared, "openai:gpt-4o")

	reply, err := c.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi there", reply)

	assert.Equal(t, "gpt-4o", got.Model)
	assert.False(t, got.Stream)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.3, *got.Temperature, 1e-9)
	assert.Equal(t, []model.Message{
		model.NewSystemMessage("be kind"),
		model.NewUserMessage("hello"),
	}, got.Messages)
}

func TestOpenAIStreaming(t *testing.T) {
	clearProxyEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		writeSSE(w,
			"data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n",
			"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n",
			": keep-alive\n\n",
			"data: {\"choices\":[{\"delta\":{\"content\":\"lo\\nWor\"}}]}\n\n",
			"data: {\"choices\":[{\"delta\":{\"content\":\"ld\"},\"finish_reason\":null}]}\n\n",
			"data: [DONE]\n\n",
		)
	}))
	defer srv.Close()

	c := initSelected(t, newShared(openaiClient("", srv.URL)), "")

	events := make(chan stream.ReplyEvent, 16)
	handler := stream.NewReplyStreamHandler(events, nil)
	require.NoError(t, c.SendMessageStreaming(context.Background(), "hi", handler))

	got := collect(events)
	assert.Equal(t, []stream.ReplyEvent{
		stream.TextEvent("Hel"),
		stream.TextEvent("lo\nWor"),
		stream.TextEvent("ld"),
		stream.DoneEvent(),
	}, got)
}

func TestOpenAIErrors(t *testing.T) {
	clearProxyEnv(t)
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"auth", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key","type":"invalid_request_error","code":"invalid_api_key"}}`, ErrAuthFailed},
		{"rate", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, ErrRateLimited},
		{"model", http.StatusNotFound, `{"error":"no such model"}`, ErrModelNotFound},
		{"credits", http.StatusPaymentRequired, `plain text`, ErrInsufficientCredits},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			c := initSelected(t, newShared(openaiClient("", srv.URL)), "")

			_, err := c.SendMessage(context.Background(), "hi")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, strings.HasPrefix(err.Error(), "failed to get answer: "))

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)

			events := make(chan stream.ReplyEvent, 4)
			handler := stream.NewReplyStreamHandler(events, nil)
			err = c.SendMessageStreaming(context.Background(), "hi", handler)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 1, countDone(collect(events)))
		})
	}
}

func TestOpenAIStreamErrorPayload(t *testing.T) {
	clearProxyEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w,
			"data: {\"choices\":[{\"delta\":{\"content\":\"par\"}}]}\n\n",
			"data: {\"error\":{\"message\":\"overloaded\",\"type\":\"server_error\"}}\n\n",
		)
	}))
	defer srv.Close()

	c := initSelected(t, newShared(openaiClient("", srv.URL)), "")
	events := make(chan stream.ReplyEvent, 8)
	handler := stream.NewReplyStreamHandler(events, nil)

	err := c.SendMessageStreaming(context.Background(), "hi", handler)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
	assert.Equal(t, "par", handler.Buffer())
}

func TestLimitExceededSendsNothing(t *testing.T) {
	clearProxyEnv(t)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	shared := newShared(openaiClient("", srv.URL, config.ModelConfig{Name: "tiny", MaxTokens: 6}))
	c := initSelected(t, shared, "openai:tiny")

	_, err := c.SendMessage(context.Background(), strings.Repeat("word ", 20))
	assert.ErrorIs(t, err, model.ErrLimitExceeded)

	events := make(chan stream.ReplyEvent, 4)
	err = c.SendMessageStreaming(context.Background(), strings.Repeat("word ", 20), stream.NewReplyStreamHandler(events, nil))
	assert.ErrorIs(t, err, model.ErrLimitExceeded)
	assert.Zero(t, hits.Load())
}

func TestAzureOpenAIRequest(t *testing.T) {
	clearProxyEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/gpt-4o/chat/completions", r.URL.Path)
		assert.Equal(t, DefaultAzureAPIVersion, r.URL.Query().Get("api-version"))
		assert.Equal(t, "azure-key", r.Header.Get("api-key"))
		assert.Empty(t, r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Empty(t, req.Model)
		fmt.Fprint(w, `{"choices":[{"message":{"content":"ok"}}]}`)
	}))
	defer srv.Close()

	shared := newShared(config.ClientConfig{Variant: &config.AzureOpenAIConfig{
		CommonConfig: config.CommonConfig{Name: "azure", Models: []config.ModelConfig{{Name: "gpt-4o", MaxTokens: 8192}}},
		APIBase:      srv.URL,
		APIKey:       "azure-key",
	}})
	c := initSelected(t, shared, "azure")

	reply, err := c.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
}

func TestLocalAIEnvironmentBase(t *testing.T) {
	clearProxyEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"choices":[{"message":{"content":"local"}}]}`)
	}))
	defer srv.Close()

	t.Setenv("LOCAL_API_BASE", srv.URL+"/v1")
	t.Setenv("LOCAL_API_KEY", "")
	shared := newShared(config.ClientConfig{Variant: &config.LocalAIConfig{
		CommonConfig: config.CommonConfig{Name: "local", Models: []config.ModelConfig{{Name: "mistral"}}},
		ChatEndpoint: "chat",
	}})
	c := initSelected(t, shared, "local:mistral")

	reply, err := c.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "local", reply)
}

func TestOpenRouterHeaders(t *testing.T) {
	clearProxyEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer or-key", r.Header.Get("Authorization"))
		assert.Equal(t, "rigchat", r.Header.Get("X-Title"))
		fmt.Fprint(w, `{"choices":[{"message":{"content":"routed"}}]}`)
	}))
	defer srv.Close()

	t.Setenv("OPENROUTER_API_KEY", "or-key")
	shared := newShared(config.ClientConfig{Variant: &config.OpenRouterConfig{APIBase: srv.URL}})
	c := initSelected(t, shared, "openrouter:openai/gpt-4o")

	reply, err := c.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "routed", reply)
}

// =============================================================================
// OLLAMA
// =============================================================================

func TestOllamaStreaming(t *testing.T) {
	clearProxyEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultOllamaModel, req.Model)
		assert.True(t, req.Stream)
		assert.Nil(t, req.Options)

		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"one "},"done":false}`)
		fmt.Fprintln(w, `not json`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"two"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"ignored"},"done":false}`)
	}))
	defer srv.Close()

	shared := newShared(config.ClientConfig{Variant: &config.OllamaConfig{APIBase: srv.URL}})
	c := initSelected(t, shared, "ollama")

	events := make(chan stream.ReplyEvent, 8)
	handler := stream.NewReplyStreamHandler(events, nil)
	require.NoError(t, c.SendMessageStreaming(context.Background(), "count", handler))

	got := collect(events)
	assert.Equal(t, "one two", texts(got))
	assert.Equal(t, 1, countDone(got))
}

func TestOllamaSendError(t *testing.T) {
	clearProxyEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model 'nope' not found"}`)
	}))
	defer srv.Close()

	shared := newShared(config.ClientConfig{Variant: &config.OllamaConfig{APIBase: srv.URL}})
	c := initSelected(t, shared, "ollama:nope")

	_, err := c.SendMessage(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrModelNotFound)
	assert.Contains(t, err.Error(), "model 'nope' not found")
}

// =============================================================================
// CLAUDE
// =============================================================================

func TestBuildClaudeBody(t *testing.T) {
	temp := 0.5
	body := buildClaudeBody("claude-3-opus-latest", SendData{
		Messages: []model.Message{
			model.NewSystemMessage("be terse"),
			model.NewUserMessage("q1"),
			model.NewAssistantMessage("a1"),
			model.NewUserMessage("q2"),
		},
		Temperature: &temp,
	})

	assert.Equal(t, "be terse", body.System)
	assert.Equal(t, claudeMaxOutput, body.MaxTokens)
	require.Len(t, body.Messages, 3)
	assert.Equal(t, claudeMessage{Role: "user", Content: "q1"}, body.Messages[0])
	assert.Equal(t, claudeMessage{Role: "assistant", Content: "a1"}, body.Messages[1])
}

func TestClaudeStreaming(t *testing.T) {
	clearProxyEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "claude-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		writeSSE(w,
			"event: message_start\ndata: {\"type\":\"message_start\"}\n\n",
			"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Bon\"}}\n\n",
			"event: ping\ndata: {\"type\":\"ping\"}\n\n",
			"event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"jour\"}}\n\n",
			"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n",
		)
	}))
	defer srv.Close()

	shared := newShared(config.ClientConfig{Variant: &config.ClaudeConfig{APIKey: "claude-key", APIBase: srv.URL + "/v1"}})
	c := initSelected(t, shared, "claude")

	events := make(chan stream.ReplyEvent, 8)
	handler := stream.NewReplyStreamHandler(events, nil)
	require.NoError(t, c.SendMessageStreaming(context.Background(), "hello", handler))

	got := collect(events)
	assert.Equal(t, "Bonjour", texts(got))
	assert.Equal(t, 1, countDone(got))
}

func TestClaudeStreamError(t *testing.T) {
	clearProxyEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, "event: error\ndata: {\"type\":\"error\",\"error\":{\"type\":\"overloaded_error\",\"message\":\"Overloaded\"}}\n\n")
	}))
	defer srv.Close()

	shared := newShared(config.ClientConfig{Variant: &config.ClaudeConfig{APIKey: "k", APIBase: srv.URL}})
	c := initSelected(t, shared, "claude")

	err := c.SendMessageStreaming(context.Background(), "hello", stream.NewReplyStreamHandler(make(chan stream.ReplyEvent, 4), nil))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "overloaded_error", apiErr.Code)
}

// =============================================================================
// ABORT
// =============================================================================

func TestStreamingAbortMidReply(t *testing.T) {
	clearProxyEnv(t)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, "data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n\n")
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	c := initSelected(t, newShared(openaiClient("", srv.URL)), "")

	events := make(chan stream.ReplyEvent, 8)
	abort := stream.NewAbortSignal()
	handler := stream.NewReplyStreamHandler(events, abort)

	go func() {
		ev := <-events
		assert.Equal(t, stream.TextEvent("first"), ev)
		abort.SetCtrlD()
	}()

	errc := make(chan error, 1)
	go func() { errc <- c.SendMessageStreaming(context.Background(), "hi", handler) }()

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("streaming did not stop after abort")
	}
	assert.True(t, handler.IsDone())
	assert.Equal(t, "first", handler.Buffer())
}
