// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !windows

package render

import "os"

// doneEOL ends a streamed reply.
const doneEOL = "\n"

func enableVirtualTerminal(_, _ *os.File) func() {
	return func() {}
}
