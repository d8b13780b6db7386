// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/stream"
)

// =============================================================================
// HELPERS
// =============================================================================

func clearProxyEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HTTPS_PROXY", "")
	t.Setenv("ALL_PROXY", "")
}

func newShared(clients ...config.ClientConfig) *config.Shared {
	cfg := config.Default()
	cfg.Clients = clients
	return config.NewShared(cfg)
}

func openaiClient(name, base string, models ...config.ModelConfig) config.ClientConfig {
	return config.ClientConfig{Variant: &config.OpenAIConfig{
		CommonConfig: config.CommonConfig{Name: name, Models: models},
		APIKey:       "sk-test",
		APIBase:      base,
	}}
}

func testSession() *stream.Session {
	return stream.NewSession(
		stream.WithInterrupts(make(chan os.Signal)),
		stream.WithPollInterval(5*time.Millisecond),
	)
}

func collect(events <-chan stream.ReplyEvent) []stream.ReplyEvent {
	var out []stream.ReplyEvent
	for {
		select {
		case ev := <-events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func texts(events []stream.ReplyEvent) string {
	var b strings.Builder
	for _, ev := range events {
		if ev.Kind == stream.EventText {
			b.WriteString(ev.Text)
		}
	}
	return b.String()
}

func countDone(events []stream.ReplyEvent) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == stream.EventDone {
			n++
		}
	}
	return n
}

// =============================================================================
// SECRETS AND TRANSPORT
// =============================================================================

func TestConfigValue(t *testing.T) {
	t.Run("explicit wins", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "from-env")
		v, err := configValue("from-config", "openai", "api_key")
		require.NoError(t, err)
		assert.Equal(t, "from-config", v)
	})

	t.Run("environment fallback", func(t *testing.T) {
		t.Setenv("MY_OPENAI_API_KEY", "from-env")
		v, err := configValue("", "my-openai", "api_key")
		require.NoError(t, err)
		assert.Equal(t, "from-env", v)
	})

	t.Run("missing names the variable", func(t *testing.T) {
		t.Setenv("NOWHERE_API_KEY", "")
		_, err := configValue("", "nowhere", "api_key")
		var missing *MissingCredentialError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "NOWHERE_API_KEY", missing.EnvVar)
		assert.Contains(t, err.Error(), "NOWHERE_API_KEY")
	})
}

func TestResolveProxy(t *testing.T) {
	ptr := func(s string) *string { return &s }

	t.Run("no proxy", func(t *testing.T) {
		clearProxyEnv(t)
		u, err := resolveProxy(nil)
		require.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("https proxy before all proxy", func(t *testing.T) {
		t.Setenv("HTTPS_PROXY", "http://one:8080")
		t.Setenv("ALL_PROXY", "socks5://two:1080")
		u, err := resolveProxy(&config.ExtraConfig{})
		require.NoError(t, err)
		assert.Equal(t, "one:8080", u.Host)
	})

	t.Run("all proxy", func(t *testing.T) {
		clearProxyEnv(t)
		t.Setenv("ALL_PROXY", "socks5h://two:1080")
		u, err := resolveProxy(nil)
		require.NoError(t, err)
		assert.Equal(t, "socks5h", u.Scheme)
	})

	t.Run("explicit disables environment", func(t *testing.T) {
		t.Setenv("HTTPS_PROXY", "http://one:8080")
		for _, v := range []string{"", "false", "-"} {
			u, err := resolveProxy(&config.ExtraConfig{Proxy: ptr(v)})
			require.NoError(t, err)
			assert.Nil(t, u, "value %q", v)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		clearProxyEnv(t)
		for _, v := range []string{"ftp://host:21", "http://", "::nope"} {
			_, err := resolveProxy(&config.ExtraConfig{Proxy: ptr(v)})
			var invalid *InvalidProxyError
			require.ErrorAs(t, err, &invalid, "value %q", v)
			assert.Equal(t, "invalid proxy `"+v+"`", err.Error())
		}
	})
}

func TestConnectTimeout(t *testing.T) {
	assert.Equal(t, DefaultConnectTimeout, connectTimeout(nil))
	assert.Equal(t, 3*time.Second, connectTimeout(&config.ExtraConfig{ConnectTimeout: 3}))
}

func TestBuildHTTPClientRejectsBadProxy(t *testing.T) {
	bad := "gopher://x"
	_, err := buildHTTPClient(&config.ExtraConfig{Proxy: &bad})
	require.Error(t, err)
}

// =============================================================================
// REGISTRY
// =============================================================================

func TestListModels(t *testing.T) {
	cfg := config.Default()
	cfg.Clients = []config.ClientConfig{
		openaiClient("", ""),
		{Variant: &config.UnknownConfig{Type: "gemini", CommonConfig: config.CommonConfig{Name: "gem"}}},
		{Variant: &config.OllamaConfig{CommonConfig: config.CommonConfig{
			Models: []config.ModelConfig{{Name: "llama3", MaxTokens: 8192}},
		}}},
	}

	models := ListModels(cfg)
	require.Len(t, models, 5)

	assert.Equal(t, "openai:gpt-4o-mini", models[0].ID())
	assert.Equal(t, 128000, models[0].MaxTokens)
	assert.Equal(t, 0, models[0].Index)
	assert.Equal(t, model.TokensCountFactors{PerMessage: 5, Bias: 2}, models[0].TokensCountFactors)

	last := models[4]
	assert.Equal(t, "ollama:llama3", last.ID())
	assert.Equal(t, 8192, last.MaxTokens)
	assert.Equal(t, 2, last.Index)
}

func TestSelectModel(t *testing.T) {
	shared := newShared(
		openaiClient("", ""),
		config.ClientConfig{Variant: &config.ClaudeConfig{}},
	)

	require.NoError(t, SelectModel(shared, ""))
	assert.Equal(t, "openai:gpt-4o-mini", shared.ModelInfo().ID())

	require.NoError(t, SelectModel(shared, "claude"))
	assert.Equal(t, "claude:claude-3-5-sonnet-latest", shared.ModelInfo().ID())

	require.NoError(t, SelectModel(shared, "openai:gpt-4o"))
	assert.Equal(t, "gpt-4o", shared.ModelInfo().Name)

	require.NoError(t, SelectModel(shared, "openai:my-finetune"))
	assert.Equal(t, "my-finetune", shared.ModelInfo().Name)
	assert.Equal(t, 0, shared.ModelInfo().MaxTokens)

	err := SelectModel(shared, "mistral:large")
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestSelectModelWithoutClients(t *testing.T) {
	shared := newShared()
	assert.ErrorIs(t, SelectModel(shared, ""), ErrNoClients)

	shared.SetDryRun(true)
	require.NoError(t, SelectModel(shared, ""))
	c, err := Init(shared)
	require.NoError(t, err)

	reply, err := c.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", reply)
}

func TestInitUnknownClient(t *testing.T) {
	shared := newShared(config.ClientConfig{Variant: &config.UnknownConfig{
		Type:         "gemini",
		CommonConfig: config.CommonConfig{Name: "gem"},
	}})

	require.NoError(t, SelectModel(shared, "gem:pro"))
	_, err := Init(shared)

	var noSuch *NoSuchClientError
	require.ErrorAs(t, err, &noSuch)
	assert.Equal(t, "unknown client gem at config.clients[0]", err.Error())
}

func TestInitIndexOutOfRange(t *testing.T) {
	shared := newShared(openaiClient("", ""))
	shared.SetModelInfo(model.NewModelInfo("openai", "gpt-4o", 3))

	_, err := Init(shared)
	var noSuch *NoSuchClientError
	require.ErrorAs(t, err, &noSuch)
	assert.Equal(t, 3, noSuch.Index)
}

func TestInitMissingKey(t *testing.T) {
	t.Setenv("CLAUDE_API_KEY", "")
	shared := newShared(config.ClientConfig{Variant: &config.ClaudeConfig{}})
	require.NoError(t, SelectModel(shared, "claude"))

	_, err := Init(shared)
	var missing *MissingCredentialError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "CLAUDE_API_KEY", missing.EnvVar)
}

func TestTypes(t *testing.T) {
	assert.Equal(t, []string{"openai", "azure-openai", "localai", "openrouter", "ollama", "claude"}, Types())
}

// =============================================================================
// DRY RUN
// =============================================================================

func TestDryRunSendMessage(t *testing.T) {
	shared := newShared(openaiClient("", "http://127.0.0.1:1"))
	shared.SetDryRun(true)
	shared.Conversation().SetSystemPrompt("be brief")
	require.NoError(t, SelectModel(shared, ""))

	c, err := Init(shared)
	require.NoError(t, err)

	reply, err := c.SendMessage(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "be brief\n\nabc", reply)
}

func TestDryRunStreaming(t *testing.T) {
	shared := newShared(openaiClient("", "http://127.0.0.1:1"))
	shared.SetDryRun(true)
	require.NoError(t, SelectModel(shared, ""))

	c, err := Init(shared, WithSession(testSession()), WithTokenDelay(time.Millisecond))
	require.NoError(t, err)

	events := make(chan stream.ReplyEvent, 64)
	handler := stream.NewReplyStreamHandler(events, nil)
	require.NoError(t, c.SendMessageStreaming(context.Background(), "hello world, abc", handler))

	got := collect(events)
	require.NotEmpty(t, got)
	assert.Equal(t, "hello world, abc", texts(got))
	assert.Equal(t, 1, countDone(got))
	assert.Equal(t, stream.EventDone, got[len(got)-1].Kind)
}

func TestEmitPacedRespectsDelay(t *testing.T) {
	events := make(chan stream.ReplyEvent, 16)
	h := stream.NewReplyStreamHandler(events, nil)

	start := time.Now()
	require.NoError(t, emitPaced(context.Background(), h, "aaaa bbbb cccc", 10*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
	assert.Equal(t, "aaaa bbbb cccc", h.Buffer())
}

func TestEmitPacedStopsOnAbort(t *testing.T) {
	events := make(chan stream.ReplyEvent, 16)
	abort := stream.NewAbortSignal()
	h := stream.NewReplyStreamHandler(events, abort)
	abort.SetCtrlD()

	err := emitPaced(context.Background(), h, "abcd efgh", 0)
	assert.True(t, errors.Is(err, stream.ErrAborted))
}

func TestLimitExceededBeforeSend(t *testing.T) {
	shared := newShared(openaiClient("", "http://127.0.0.1:1"))
	shared.SetModelInfo(model.NewModelInfo("openai", "tiny", 0).
		SetMaxTokens(4).
		SetTokensCountFactors(5, 2))

	_, err := prepareSendData(shared, "this sentence is far too long for the window", false)
	assert.ErrorIs(t, err, model.ErrLimitExceeded)
}
