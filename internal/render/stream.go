// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeranaias/rigchat/internal/logger"
	"github.com/jeranaias/rigchat/internal/stream"
	"github.com/jeranaias/rigchat/internal/util"
)

// DefaultTick is how often the keyboard is polled while no event is pending.
const DefaultTick = 50 * time.Millisecond

// NeedRows returns how many terminal rows text occupies at the given width,
// at least one.
func NeedRows(text string, columns int) int {
	if columns <= 0 {
		return 1
	}
	rows := (util.DisplayWidth(text) + columns - 1) / columns
	if rows < 1 {
		return 1
	}
	return rows
}

// =============================================================================
// RENDERER
// =============================================================================

// Renderer draws streamed replies on a terminal.
type Renderer struct {
	term Terminal
	md   *Markdown
	tick time.Duration
	eol  string
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithTick sets the keyboard poll interval.
func WithTick(d time.Duration) RendererOption {
	return func(r *Renderer) {
		if d > 0 {
			r.tick = d
		}
	}
}

// WithLineEnd overrides what is printed after the reply.
func WithLineEnd(eol string) RendererOption {
	return func(r *Renderer) { r.eol = eol }
}

// NewRenderer creates a renderer drawing on t.
func NewRenderer(t Terminal, md *Markdown, opts ...RendererOption) *Renderer {
	if md == nil {
		md = PlainMarkdown()
	}
	r := &Renderer{term: t, md: md, tick: DefaultTick, eol: doneEOL}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// renderState is the trailing partial line and the rows it covers on screen.
type renderState struct {
	buffer  string
	rows    int
	columns int
}

// Stream draws events until Done, an abort, or ctx ends. Ctrl-C and Ctrl-D
// set the abort signal and return immediately without draining further
// events. The terminal mode is restored on every return path.
func (r *Renderer) Stream(ctx context.Context, events <-chan stream.ReplyEvent, abort *stream.AbortSignal) (err error) {
	restore, err := r.term.EnterRaw()
	if err != nil {
		return err
	}
	defer func() {
		if rerr := restore(); rerr != nil && err == nil {
			err = fmt.Errorf("restore terminal: %w", rerr)
		}
	}()

	columns, _, err := r.term.Size()
	if err != nil {
		if columns <= 0 {
			return err
		}
		logger.FromContext(ctx).Debug().Err(err).Int("columns", columns).Msg("using fallback terminal width")
	}
	st := &renderState{rows: 1, columns: columns}

	lastTick := time.Now()
	for {
		if abort.Aborted() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			// Events already queued, including Done, are still drawn.
			return r.drain(st, events, err)
		}

		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			done, err := r.handleEvent(st, ev)
			if done || err != nil {
				return err
			}
			continue
		default:
		}

		timeout := r.tick - time.Since(lastTick)
		if timeout < 0 {
			timeout = 0
		}
		key, err := r.term.ReadKey(timeout)
		if err != nil {
			return err
		}
		switch key {
		case KeyCtrlC:
			abort.SetCtrlC()
			return nil
		case KeyCtrlD:
			abort.SetCtrlD()
			return nil
		}

		if time.Since(lastTick) >= r.tick {
			lastTick = time.Now()
		}
	}
}

// handleEvent draws one event. done is true once Done has been printed.
func (r *Renderer) handleEvent(st *renderState, ev stream.ReplyEvent) (done bool, err error) {
	switch ev.Kind {
	case stream.EventText:
		return false, r.renderText(st, ev.Text)
	case stream.EventDone:
		r.term.Print(r.eol)
		return true, r.term.Flush()
	}
	return false, nil
}

// drain draws the events already queued without waiting for more. It
// returns nil when Done was among them and cause otherwise.
func (r *Renderer) drain(st *renderState, events <-chan stream.ReplyEvent, cause error) error {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return cause
			}
			done, err := r.handleEvent(st, ev)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		default:
			return cause
		}
	}
}

// renderText redraws the partial line with text appended.
func (r *Renderer) renderText(st *renderState, text string) error {
	col, row, err := r.term.CursorPosition()
	if err != nil {
		return err
	}

	// Some emulators report the row below a line that exactly fills the
	// width.
	if col == 0 && row > 0 && util.DisplayWidth(st.buffer) == st.columns {
		row--
	}

	if row+1 >= st.rows {
		r.term.MoveTo(0, row+1-st.rows)
	} else {
		r.term.ScrollUp(st.rows - row - 1)
		r.term.MoveTo(0, 0)
	}
	r.term.ClearUntilNewLine()

	if strings.Contains(text, "\n") {
		head, tail := util.SplitLineTail(st.buffer + text)
		st.buffer = tail
		r.printBlock(r.md.Render(head), st.columns)
		r.term.Print(st.buffer)
		st.rows = NeedRows(st.buffer, st.columns)
	} else {
		st.buffer += text
		out := r.md.RenderLine(st.buffer)
		if strings.Contains(out, "\n") {
			head, tail := util.SplitLineTail(out)
			st.rows = r.printBlock(head, st.columns)
			r.term.Print(tail)
			st.rows += NeedRows(tail, st.columns)
		} else {
			r.term.Print(out)
			st.rows = NeedRows(out, st.columns)
		}
	}

	return r.term.Flush()
}

// printBlock writes finished lines, returning the cursor to column 0 after
// each, and returns the number of lines written.
func (r *Renderer) printBlock(text string, columns int) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		r.term.Print(line)
		r.term.Print("\n")
		r.term.MoveLeft(columns)
		n++
	}
	return n
}

// =============================================================================
// PLAIN OUTPUT
// =============================================================================

// StreamPlain writes the reply to w as complete lines, for output that is not
// a terminal. It returns at Done, when the abort signal is set, or when ctx
// ends.
func StreamPlain(ctx context.Context, w io.Writer, md *Markdown, events <-chan stream.ReplyEvent, abort *stream.AbortSignal) error {
	if md == nil {
		md = PlainMarkdown()
	}

	var pending string
	flush := func() error {
		if pending == "" {
			return nil
		}
		_, err := fmt.Fprintln(w, md.Render(pending))
		pending = ""
		return err
	}
	// text appends ev and writes every completed line. done reports Done or
	// a closed channel.
	text := func(ev stream.ReplyEvent, ok bool) (done bool, err error) {
		if !ok || ev.Kind == stream.EventDone {
			return true, flush()
		}
		pending += ev.Text
		if !strings.Contains(pending, "\n") {
			return false, nil
		}
		head, tail := util.SplitLineTail(pending)
		pending = tail
		_, err = fmt.Fprintln(w, md.Render(head))
		return false, err
	}

	for {
		select {
		case <-ctx.Done():
			// Events already queued, including Done, are still written.
			for {
				select {
				case ev, ok := <-events:
					if done, err := text(ev, ok); done || err != nil {
						return err
					}
				default:
					if err := flush(); err != nil {
						return err
					}
					return ctx.Err()
				}
			}
		case <-abort.Done():
			return flush()
		case ev, ok := <-events:
			done, err := text(ev, ok)
			if done || err != nil {
				return err
			}
		}
	}
}
