// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/muesli/termenv"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/rigchat/internal/client"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/logger"
	"github.com/jeranaias/rigchat/internal/render"
	"github.com/jeranaias/rigchat/internal/stream"
	"github.com/jeranaias/rigchat/internal/util"
)

const (
	// eventBuffer is the capacity of the channel between session and renderer.
	eventBuffer = 64

	logPreviewRunes = 80
)

// =============================================================================
// APP
// =============================================================================

// App holds what one invocation needs to ask questions: the shared runtime
// state, the logger and where replies go.
type App struct {
	shared  *config.Shared
	log     *logger.Logger
	out     io.Writer
	live    bool
	columns int
	profile termenv.Profile
	opts    []client.Option
}

// AppOption configures an App.
type AppOption func(*App)

// WithOutput sets the reply writer. Replies are then rendered as plain
// completed lines instead of live terminal updates.
func WithOutput(w io.Writer) AppOption {
	return func(a *App) {
		a.out = w
		a.live = false
	}
}

// WithClientOptions passes options to every client the App creates.
func WithClientOptions(opts ...client.Option) AppOption {
	return func(a *App) {
		a.opts = append(a.opts, opts...)
	}
}

// WithColumns overrides the detected terminal width.
func WithColumns(columns int) AppOption {
	return func(a *App) {
		a.columns = columns
	}
}

// WithColorProfile overrides the detected color profile.
func WithColorProfile(p termenv.Profile) AppOption {
	return func(a *App) {
		a.profile = p
	}
}

// NewApp creates an App writing to stdout. Live rendering is used when
// stdout is a terminal.
func NewApp(shared *config.Shared, log *logger.Logger, opts ...AppOption) *App {
	if log == nil {
		log = logger.Nop()
	}
	a := &App{
		shared:  shared,
		log:     log,
		out:     os.Stdout,
		live:    IsStdoutTTY() && render.IsTerminal(),
		columns: GetTerminalWidth(),
		profile: GetColorProfile(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Shared returns the runtime state the App asks with.
func (a *App) Shared() *config.Shared {
	return a.shared
}

func (a *App) markdownOptions() render.MarkdownOptions {
	cfg := a.shared.Config()
	return render.MarkdownOptions{
		Highlight: cfg.HighlightEnabled(),
		Wrap:      cfg.WrapWidth(a.columns),
		Theme:     cfg.Theme,
		Profile:   a.profile,
	}
}

// =============================================================================
// ASK
// =============================================================================

// Ask sends text with the current conversation to the selected model and
// renders the reply. The exchange is added to the conversation unless it
// produced nothing or ran in dry-run mode.
func (a *App) Ask(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	cl, err := client.Init(a.shared, a.opts...)
	if err != nil {
		return err
	}

	sessionID := uuid.NewString()
	log := a.log.With("session", sessionID)
	ctx = log.WithContext(ctx)
	log.Debug().
		Str("model", a.shared.ModelInfo().ID()).
		Str("input", util.TruncateRunes(util.OneLine(text), logPreviewRunes)).
		Msg("ask")

	var reply string
	if a.shared.Config().NoStream {
		reply, err = a.askOnce(ctx, cl, text)
	} else {
		reply, err = a.askStreaming(ctx, cl, text)
	}
	if err != nil {
		return err
	}

	if !a.shared.DryRun() && reply != "" {
		a.shared.Conversation().AddTurn(text, reply)
	}
	return nil
}

func (a *App) askOnce(ctx context.Context, cl *client.Client, text string) (string, error) {
	reply, err := cl.SendMessage(ctx, text)
	if err != nil {
		return "", err
	}
	fmt.Fprintln(a.out, render.RenderDocument(reply, a.markdownOptions()))
	return reply, nil
}

// askStreaming runs the streaming session and the renderer side by side.
// Whichever fails first cancels the other.
func (a *App) askStreaming(ctx context.Context, cl *client.Client, text string) (string, error) {
	events := make(chan stream.ReplyEvent, eventBuffer)
	abort := stream.NewAbortSignal()
	handler := stream.NewReplyStreamHandler(events, abort)
	md := render.NewMarkdown(a.markdownOptions())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return cl.SendMessageStreaming(gctx, text, handler)
	})
	g.Go(func() error {
		var err error
		if a.live {
			err = render.NewRenderer(render.NewTTY(), md).Stream(gctx, events, abort)
		} else {
			err = render.StreamPlain(gctx, a.out, md, events, abort)
		}
		if err != nil {
			// Unblocks a retrieval waiting on a full event channel.
			abort.SetCtrlC()
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return "", err
	}
	return handler.Buffer(), nil
}
