// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

// fakeTerminal is a character grid that wraps as soon as a row is filled,
// like emulators that report column 0 after writing the last cell.
type fakeTerminal struct {
	mu sync.Mutex

	width, height int
	grid          [][]rune
	col, row      int

	sizeErr  error
	keys     []Key
	scrolls  []int
	raw      bool
	restores int
}

func newFakeTerminal(width, height int) *fakeTerminal {
	f := &fakeTerminal{width: width, height: height}
	f.grid = make([][]rune, height)
	for i := range f.grid {
		f.grid[i] = f.blankRow()
	}
	return f
}

func (f *fakeTerminal) blankRow() []rune {
	row := make([]rune, f.width)
	for i := range row {
		row[i] = ' '
	}
	return row
}

func (f *fakeTerminal) shift(n int) {
	for ; n > 0; n-- {
		f.grid = append(f.grid[1:], f.blankRow())
	}
}

func (f *fakeTerminal) lineFeed() {
	f.row++
	if f.row >= f.height {
		f.shift(1)
		f.row = f.height - 1
	}
}

func (f *fakeTerminal) Size() (int, int, error) {
	return f.width, f.height, f.sizeErr
}

func (f *fakeTerminal) CursorPosition() (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.col, f.row, nil
}

func (f *fakeTerminal) MoveTo(col, row int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.col = min(max(col, 0), f.width-1)
	f.row = min(max(row, 0), f.height-1)
}

func (f *fakeTerminal) MoveLeft(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.col = max(f.col-n, 0)
}

func (f *fakeTerminal) ScrollUp(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolls = append(f.scrolls, n)
	f.shift(n)
}

func (f *fakeTerminal) ClearUntilNewLine() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := f.col; i < f.width; i++ {
		f.grid[f.row][i] = ' '
	}
}

func (f *fakeTerminal) Print(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range s {
		if r == '\n' {
			f.lineFeed()
			continue
		}
		f.grid[f.row][f.col] = r
		f.col++
		if f.col == f.width {
			f.col = 0
			f.lineFeed()
		}
	}
}

func (f *fakeTerminal) Flush() error { return nil }

func (f *fakeTerminal) ReadKey(timeout time.Duration) (Key, error) {
	f.mu.Lock()
	if len(f.keys) > 0 {
		k := f.keys[0]
		f.keys = f.keys[1:]
		f.mu.Unlock()
		return k, nil
	}
	f.mu.Unlock()
	time.Sleep(min(timeout, time.Millisecond))
	return KeyNone, nil
}

func (f *fakeTerminal) EnterRaw() (func() error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw = true
	return func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.raw = false
		f.restores++
		return nil
	}, nil
}

func (f *fakeTerminal) pressKey(k Key) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, k)
}

func (f *fakeTerminal) cursor() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.col, f.row
}

// lines returns the screen rows without trailing blanks or blank rows at the
// bottom.
func (f *fakeTerminal) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.grid))
	last := -1
	for i, row := range f.grid {
		out[i] = strings.TrimRight(string(row), " ")
		if out[i] != "" {
			last = i
		}
	}
	return out[:last+1]
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}
