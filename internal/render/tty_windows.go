// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows

package render

import (
	"os"

	"golang.org/x/sys/windows"
)

// doneEOL ends a streamed reply. The Windows console swallows one newline
// when leaving raw mode.
const doneEOL = "\n\n"

// enableVirtualTerminal turns on ANSI sequence handling for output and
// cursor reports on input. The returned function restores the console modes.
func enableVirtualTerminal(in, out *os.File) func() {
	modes := []struct {
		file *os.File
		flag uint32
	}{
		{out, windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING},
		{in, windows.ENABLE_VIRTUAL_TERMINAL_INPUT},
	}

	var restores []func()
	for _, m := range modes {
		h := windows.Handle(m.file.Fd())
		var mode uint32
		if err := windows.GetConsoleMode(h, &mode); err != nil {
			continue
		}
		if err := windows.SetConsoleMode(h, mode|m.flag); err != nil {
			continue
		}
		restores = append(restores, func() { _ = windows.SetConsoleMode(h, mode) })
	}
	return func() {
		for _, restore := range restores {
			restore()
		}
	}
}
