// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - interactive session for rigchat.
//
// Commands:
//
//	.help               Show this help
//	.model [id]         List models or switch to one
//	.info               Show current settings
//	.clear              Clear conversation history
//	.exit               Exit the session
//
// Any other input is sent to the selected model.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/rigchat/internal/client"
)

// =============================================================================
// LINE INPUT
// =============================================================================

// ChatCLI provides line editing and in-memory input history.
type ChatCLI struct {
	line *liner.State
}

// NewChatCLI creates a line editor that completes REPL commands.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeCommand)
	return &ChatCLI{line: line}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// Close restores the terminal.
func (c *ChatCLI) Close() error {
	return c.line.Close()
}

// =============================================================================
// COMMANDS
// =============================================================================

type replCommand struct {
	name  string
	usage string
	help  string
}

var replCommands = []replCommand{
	{".help", ".help", "Show this help"},
	{".model", ".model [id]", "List models or switch to one"},
	{".info", ".info", "Show current settings"},
	{".clear", ".clear", "Clear conversation history"},
	{".exit", ".exit", "Exit the session"},
}

func completeCommand(line string) []string {
	if !strings.HasPrefix(line, ".") {
		return nil
	}
	var out []string
	for _, c := range replCommands {
		if strings.HasPrefix(c.name, line) {
			out = append(out, c.name)
		}
	}
	return out
}

// REPL runs an interactive session on top of an App.
type REPL struct {
	app *App
	out io.Writer
}

// NewREPL creates a REPL printing command output to out.
func NewREPL(app *App, out io.Writer) *REPL {
	return &REPL{app: app, out: out}
}

// Run reads input until .exit or end of input.
func (r *REPL) Run(ctx context.Context) error {
	input := NewChatCLI()
	defer input.Close()

	fmt.Fprintf(r.out, "%s %s\n", TitleStyle.Render("rigchat"), DimStyle.Render("type .help for commands"))
	prompt := r.app.Shared().ModelInfo().ID() + "> "

	for {
		line, err := input.ReadInput(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(r.out, WarningStyle.Render("(to exit, use .exit or Ctrl-D)"))
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		quit, err := r.handle(ctx, line)
		if err != nil {
			DisplayError(r.out, err)
		}
		if quit {
			return nil
		}
		prompt = r.app.Shared().ModelInfo().ID() + "> "
	}
}

// handle executes one line of input.
func (r *REPL) handle(ctx context.Context, input string) (quit bool, err error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return false, nil
	}
	if !strings.HasPrefix(input, ".") {
		return false, r.app.Ask(ctx, input)
	}

	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case ".help":
		r.printHelp()
	case ".model":
		if arg == "" {
			r.printModels()
			return false, nil
		}
		if err := client.SelectModel(r.app.Shared(), arg); err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "%s %s\n", LabelStyle.Render("model"), ValueStyle.Render(r.app.Shared().ModelInfo().ID()))
	case ".info":
		printInfo(r.out, r.app.Shared())
	case ".clear":
		r.app.Shared().Conversation().Clear()
		fmt.Fprintln(r.out, DimStyle.Render("conversation cleared"))
	case ".exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command '%s', type .help for the list", name)
	}
	return false, nil
}

func (r *REPL) printHelp() {
	for _, c := range replCommands {
		fmt.Fprintf(r.out, "%s %s\n", LabelStyle.Render(c.usage), DimStyle.Render(c.help))
	}
}

func (r *REPL) printModels() {
	current := r.app.Shared().ModelInfo().ID()
	for _, m := range client.ListModels(r.app.Shared().Config()) {
		id := m.ID()
		if id == current {
			fmt.Fprintf(r.out, "%s %s\n", HighlightStyle.Render("*"), HighlightStyle.Render(id))
			continue
		}
		fmt.Fprintf(r.out, "  %s\n", id)
	}
}
