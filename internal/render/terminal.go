// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"time"
)

// Key is a key press seen while streaming.
type Key int

const (
	// KeyNone means no key arrived before the timeout.
	KeyNone Key = iota
	KeyCtrlC
	KeyCtrlD
	KeyOther
)

// Terminal is the screen the renderer draws on. Rows and columns are zero
// based. Output calls are buffered until Flush.
type Terminal interface {
	// Size returns the width and height in cells.
	Size() (columns, rows int, err error)

	// CursorPosition queries the current cursor cell.
	CursorPosition() (col, row int, err error)

	MoveTo(col, row int)
	MoveLeft(n int)
	ScrollUp(n int)

	// ClearUntilNewLine erases from the cursor to the end of the line.
	ClearUntilNewLine()

	Print(s string)
	Flush() error

	// ReadKey waits up to timeout for a key press.
	ReadKey(timeout time.Duration) (Key, error)

	// EnterRaw switches input to raw mode. The returned function restores
	// the previous mode and may be called more than once.
	EnterRaw() (restore func() error, err error)
}
