// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render draws streamed replies in the terminal.
//
// Renderer.Stream consumes the reply events of one session and redraws the
// trailing partial line in place as fragments arrive, finalizing complete
// lines through the Markdown line renderer. It owns the terminal for the
// session: raw mode is entered on start and restored on every return path.
// Ctrl-C and Ctrl-D typed while streaming are written to the session's abort
// signal.
//
// StreamPlain is the variant for output that is not a terminal, and
// RenderDocument renders a complete reply at once.
package render
