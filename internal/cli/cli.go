// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - root command and flag handling for rigchat.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jeranaias/rigchat/internal/client"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/logger"
	"github.com/jeranaias/rigchat/internal/util"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Args holds the parsed command line flags.
type Args struct {
	Model       string
	ListModels  bool
	DryRun      bool
	NoStream    bool
	Temperature float64
	Prompt      string
	ConfigPath  string
	Verbose     bool
	LogFile     string
	Info        bool
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCommand builds the rigchat command. Options are applied to the App
// that answers questions.
func NewRootCommand(appOpts ...AppOption) *cobra.Command {
	var args Args

	cmd := &cobra.Command{
		Use:   "rigchat [flags] [text...]",
		Short: "Chat with language models from the terminal",
		Long: `rigchat sends a question, with the conversation so far, to a configured
model provider and renders the reply as it streams in.

Without text and with a terminal on stdin an interactive session starts.
Piped stdin is appended to the text.`,
		Example: `  rigchat what is a goroutine
  rigchat -m claude:claude-3-5-haiku-latest "explain this" < main.go
  rigchat --list-models`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, positional []string) error {
			return run(cmd, args, positional, appOpts)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Reason: err.Error()}
	})

	flags := cmd.Flags()
	flags.StringVarP(&args.Model, "model", "m", "", "model to use, as client:name")
	flags.BoolVar(&args.ListModels, "list-models", false, "list available models and exit")
	flags.BoolVar(&args.DryRun, "dry-run", false, "echo the request instead of sending it")
	flags.BoolVar(&args.NoStream, "no-stream", false, "wait for the whole reply before printing")
	flags.Float64Var(&args.Temperature, "temperature", 0, "sampling temperature")
	flags.StringVar(&args.Prompt, "prompt", "", "system prompt for the conversation")
	flags.StringVar(&args.ConfigPath, "config", "", "config file (TOML or JSON)")
	flags.BoolVarP(&args.Verbose, "verbose", "v", false, "log debug output to stderr")
	flags.StringVar(&args.LogFile, "log-file", "", "write JSON logs to this file")
	flags.BoolVar(&args.Info, "info", false, "show the effective settings and exit")

	return cmd
}

// Execute runs the root command with the process arguments and reports any
// error on stderr. The returned error maps to an exit code with GetExitCode.
func Execute() error {
	cmd := NewRootCommand()
	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		DisplayError(os.Stderr, err)
	}
	return err
}

func run(cmd *cobra.Command, args Args, positional []string, appOpts []AppOption) error {
	cfg, err := config.Load(args.ConfigPath)
	if err != nil {
		return &ConfigError{Path: args.ConfigPath, Err: err}
	}
	applyFlags(cmd, cfg, args)
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Err: err}
	}

	log, closeLog, err := logger.New(logger.Options{
		File:    cfg.LogFile,
		Verbose: args.Verbose,
		Stderr:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return &ConfigError{Path: cfg.LogFile, Err: err}
	}
	defer closeLog()

	shared := config.NewShared(cfg)
	out := cmd.OutOrStdout()

	if args.ListModels {
		for _, m := range client.ListModels(cfg) {
			fmt.Fprintln(out, m.ID())
		}
		return nil
	}

	if err := client.SelectModel(shared, cfg.Model); err != nil {
		return err
	}
	log.Debug().Str("model", shared.ModelInfo().ID()).Bool("dry_run", cfg.DryRun).Msg("model selected")

	if args.Info {
		printInfo(out, shared)
		return nil
	}

	text := strings.Join(positional, " ")
	interactive := inputIsTerminal(cmd.InOrStdin())
	if !interactive {
		piped, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = joinInput(text, string(piped))
	}

	if out != os.Stdout {
		appOpts = append([]AppOption{WithOutput(out)}, appOpts...)
	}
	app := NewApp(shared, log, appOpts...)

	if strings.TrimSpace(text) == "" {
		if !interactive {
			return &UsageError{Reason: "no input: pass text as arguments or on stdin"}
		}
		return NewREPL(app, out).Run(cmd.Context())
	}
	return app.Ask(cmd.Context(), text)
}

// applyFlags overrides configuration with the flags given explicitly.
func applyFlags(cmd *cobra.Command, cfg *config.Config, args Args) {
	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model = args.Model
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = args.DryRun
	}
	if flags.Changed("no-stream") {
		cfg.NoStream = args.NoStream
	}
	if flags.Changed("temperature") {
		t := args.Temperature
		cfg.Temperature = &t
	}
	if flags.Changed("prompt") {
		cfg.Prompt = args.Prompt
	}
	if flags.Changed("log-file") {
		cfg.LogFile = args.LogFile
	}
}

// inputIsTerminal reports whether r is a terminal. Readers that are not
// files count as piped input.
func inputIsTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func joinInput(text, piped string) string {
	piped = strings.TrimRight(piped, "\r\n")
	switch {
	case piped == "":
		return text
	case text == "":
		return piped
	}
	return text + "\n" + piped
}

// =============================================================================
// INFO
// =============================================================================

const infoValueWidth = 60

func printInfo(w io.Writer, shared *config.Shared) {
	cfg := shared.Config()
	info := shared.ModelInfo()

	maxTokens := "-"
	if info.MaxTokens > 0 {
		maxTokens = strconv.Itoa(info.MaxTokens)
	}
	temperature := "-"
	if t := shared.Temperature(); t != nil {
		temperature = strconv.FormatFloat(*t, 'f', -1, 64)
	}
	prompt := "-"
	if cfg.Prompt != "" {
		prompt = util.TruncateWidth(util.OneLine(cfg.Prompt), infoValueWidth)
	}

	rows := [][2]string{
		{"model", info.ID()},
		{"max_tokens", maxTokens},
		{"temperature", temperature},
		{"prompt", prompt},
		{"dry_run", strconv.FormatBool(shared.DryRun())},
		{"stream", strconv.FormatBool(!cfg.NoStream)},
		{"highlight", strconv.FormatBool(cfg.HighlightEnabled())},
		{"wrap", cfg.Wrap},
		{"theme", cfg.Theme},
		{"messages", strconv.Itoa(shared.Conversation().Len())},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s%s\n", LabelStyle.Render(r[0]), ValueStyle.Render(r[1]))
	}
}
