// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/muesli/cancelreader"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// DefaultColumns is used when the terminal width cannot be read.
const DefaultColumns = 80

// cursorTimeout bounds the wait for a cursor position report.
const cursorTimeout = time.Second

var (
	errNotRaw        = errors.New("terminal is not in raw mode")
	errCursorTimeout = errors.New("terminal did not report the cursor position")
)

// =============================================================================
// TTY
// =============================================================================

// TTY is the process terminal: stdout for drawing, stdin for keys and cursor
// position reports.
type TTY struct {
	in  *os.File
	out *os.File
	buf *bufio.Writer
	env *termenv.Output

	mu     sync.Mutex
	reader cancelreader.CancelReader
	keys   chan Key
	cpr    chan position
	wg     sync.WaitGroup
}

// NewTTY returns the terminal on stdin and stdout.
func NewTTY() *TTY {
	return newTTY(os.Stdin, os.Stdout)
}

func newTTY(in, out *os.File) *TTY {
	buf := bufio.NewWriter(out)
	return &TTY{
		in:  in,
		out: out,
		buf: buf,
		env: termenv.NewOutput(buf),
	}
}

// IsTerminal reports whether both stdin and stdout are terminals.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func (t *TTY) Size() (int, int, error) {
	w, h, err := term.GetSize(int(t.out.Fd()))
	if err != nil {
		return DefaultColumns, 0, fmt.Errorf("terminal size: %w", err)
	}
	if w <= 0 {
		w = DefaultColumns
	}
	return w, h, nil
}

func (t *TTY) CursorPosition() (int, int, error) {
	t.mu.Lock()
	cpr := t.cpr
	t.mu.Unlock()
	if cpr == nil {
		return 0, 0, errNotRaw
	}

	// Drop reports nobody waited for.
	for drained := false; !drained; {
		select {
		case <-cpr:
		default:
			drained = true
		}
	}

	t.buf.WriteString(termenv.CSI + "6n")
	if err := t.buf.Flush(); err != nil {
		return 0, 0, err
	}

	select {
	case p := <-cpr:
		return p.col, p.row, nil
	case <-time.After(cursorTimeout):
		return 0, 0, errCursorTimeout
	}
}

func (t *TTY) MoveTo(col, row int) {
	t.env.MoveCursor(row+1, col+1)
}

func (t *TTY) MoveLeft(n int) {
	if n > 0 {
		t.env.CursorBack(n)
	}
}

func (t *TTY) ScrollUp(n int) {
	if n > 0 {
		fmt.Fprintf(t.buf, termenv.CSI+termenv.ScrollUpSeq, n)
	}
}

func (t *TTY) ClearUntilNewLine() {
	t.env.ClearLineRight()
}

func (t *TTY) Print(s string) {
	t.buf.WriteString(s)
}

func (t *TTY) Flush() error {
	return t.buf.Flush()
}

func (t *TTY) ReadKey(timeout time.Duration) (Key, error) {
	t.mu.Lock()
	keys := t.keys
	t.mu.Unlock()
	if keys == nil {
		return KeyNone, errNotRaw
	}

	if timeout <= 0 {
		select {
		case k := <-keys:
			return k, nil
		default:
			return KeyNone, nil
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case k := <-keys:
		return k, nil
	case <-timer.C:
		return KeyNone, nil
	}
}

func (t *TTY) EnterRaw() (func() error, error) {
	fd := int(t.in.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("enable raw mode: %w", err)
	}
	restoreConsole := enableVirtualTerminal(t.in, t.out)

	reader, err := cancelreader.NewReader(t.in)
	if err != nil {
		restoreConsole()
		_ = term.Restore(fd, state)
		return nil, fmt.Errorf("open terminal input: %w", err)
	}

	t.mu.Lock()
	t.reader = reader
	t.keys = make(chan Key, 16)
	t.cpr = make(chan position, 1)
	keys, cpr := t.keys, t.cpr
	t.mu.Unlock()

	t.wg.Add(1)
	go t.readInput(reader, keys, cpr)

	var once sync.Once
	var restoreErr error
	return func() error {
		once.Do(func() {
			reader.Cancel()
			t.wg.Wait()
			_ = reader.Close()

			t.mu.Lock()
			t.reader, t.keys, t.cpr = nil, nil, nil
			t.mu.Unlock()

			restoreConsole()
			restoreErr = term.Restore(fd, state)
		})
		return restoreErr
	}, nil
}

// readInput decodes stdin until the reader is cancelled.
func (t *TTY) readInput(r io.Reader, keys chan<- Key, cpr chan<- position) {
	defer t.wg.Done()

	var pending []byte
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			var in input
			in, pending = decodeInput(append(pending, buf[:n]...))
			for _, k := range in.keys {
				select {
				case keys <- k:
				default:
				}
			}
			for _, p := range in.positions {
				select {
				case cpr <- p:
				default:
				}
			}
		}
		if err != nil {
			return
		}
	}
}
