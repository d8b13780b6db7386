// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the rigchat command line.
//
// # Usage
//
//	rigchat [flags] [text...]
//
// With text (or piped stdin) a single question is asked and the reply
// printed. Without text on a terminal an interactive session starts, with
// these commands:
//
//	.help          show the command list
//	.model [id]    list models or switch to one ("client:name")
//	.info          show the current settings
//	.clear         forget the conversation history
//	.exit          leave
//
// Replies stream live into the terminal. Ctrl-C or Ctrl-D while a reply is
// streaming stops it.
//
// # Exit codes
//
// Errors map to exit codes via GetExitCode: 2 when the input exceeds the
// model's context window, 3 for configuration problems, 4 for rejected
// credentials, 5 for network failures and 1 for anything else.
package cli
