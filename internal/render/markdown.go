// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"io"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
)

// =============================================================================
// PALETTE
// =============================================================================

var (
	headingColor = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}
	codeColor    = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}
	bulletColor  = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}
	mutedColor   = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}
	quoteColor   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}
)

var (
	headingPattern = regexp.MustCompile(`^#{1,6}\s+\S`)
	listPattern    = regexp.MustCompile(`^(\s*)([-*+]|\d+[.)])(\s+)(.*)$`)
	rulePattern    = regexp.MustCompile(`^\s*([-*_])(\s*[-*_]){2,}\s*$`)
	quotePattern   = regexp.MustCompile(`^\s*>`)
	boldPattern    = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	inlinePattern  = regexp.MustCompile("`([^`]+)`")
)

// MarkdownOptions configures a Markdown renderer.
type MarkdownOptions struct {
	// Highlight enables styling. Without it lines pass through unchanged.
	Highlight bool

	// Wrap is the column to word-wrap prose at; 0 disables wrapping.
	Wrap int

	// Theme is "dark" or "light".
	Theme string

	// Profile is the color profile styles are rendered for.
	Profile termenv.Profile
}

// =============================================================================
// MARKDOWN
// =============================================================================

type blockState struct {
	inCode bool
	lang   string
}

// Markdown styles reply text line by line. It tracks fenced code blocks
// across lines, so it is not safe for concurrent use.
type Markdown struct {
	opts  MarkdownOptions
	state blockState

	heading lipgloss.Style
	bold    lipgloss.Style
	code    lipgloss.Style
	bullet  lipgloss.Style
	quote   lipgloss.Style
	muted   lipgloss.Style

	chromaStyle *chroma.Style
	formatter   chroma.Formatter
}

// NewMarkdown creates a line renderer.
func NewMarkdown(opts MarkdownOptions) *Markdown {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(opts.Profile)
	r.SetHasDarkBackground(opts.Theme != "light")

	m := &Markdown{
		opts:    opts,
		heading: r.NewStyle().Bold(true).Foreground(headingColor),
		bold:    r.NewStyle().Bold(true),
		code:    r.NewStyle().Foreground(codeColor),
		bullet:  r.NewStyle().Foreground(bulletColor),
		quote:   r.NewStyle().Italic(true).Foreground(quoteColor),
		muted:   r.NewStyle().Foreground(mutedColor),
	}

	styleName := "monokai"
	if opts.Theme == "light" {
		styleName = "github"
	}
	m.chromaStyle = chromaStyles.Get(styleName)
	if m.chromaStyle == nil {
		m.chromaStyle = chromaStyles.Fallback
	}
	m.formatter = formatterFor(opts.Profile)
	return m
}

// PlainMarkdown returns a renderer that only tracks block state.
func PlainMarkdown() *Markdown {
	return NewMarkdown(MarkdownOptions{Profile: termenv.Ascii})
}

func formatterFor(profile termenv.Profile) chroma.Formatter {
	name := "terminal256"
	switch profile {
	case termenv.TrueColor:
		name = "terminal16m"
	case termenv.ANSI:
		name = "terminal"
	case termenv.Ascii:
		return nil
	}
	if f := formatters.Get(name); f != nil {
		return f
	}
	return formatters.Fallback
}

// Render styles complete lines and advances the block state past them.
func (m *Markdown) Render(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = m.renderLine(line, &m.state)
	}
	return strings.Join(lines, "\n")
}

// RenderLine styles a line that is still being received. The block state is
// left untouched. The result contains a newline when wrapping split it.
func (m *Markdown) RenderLine(line string) string {
	state := m.state
	return m.renderLine(line, &state)
}

// InCodeBlock reports whether the rendered lines left a code fence open.
func (m *Markdown) InCodeBlock() bool {
	return m.state.inCode
}

// Reset forgets block state between replies.
func (m *Markdown) Reset() {
	m.state = blockState{}
}

func (m *Markdown) renderLine(line string, state *blockState) string {
	if fence, ok := strings.CutPrefix(strings.TrimSpace(line), "```"); ok {
		if state.inCode {
			*state = blockState{}
		} else {
			*state = blockState{inCode: true, lang: strings.TrimSpace(fence)}
		}
		if !m.opts.Highlight {
			return line
		}
		return m.muted.Render(line)
	}

	if state.inCode {
		if !m.opts.Highlight {
			return line
		}
		return m.highlight(line, state.lang)
	}

	out := line
	if m.opts.Highlight {
		out = m.styleProse(line)
	}
	if m.opts.Wrap > 0 {
		out = wordwrap.String(out, m.opts.Wrap)
	}
	return out
}

func (m *Markdown) styleProse(line string) string {
	switch {
	case headingPattern.MatchString(line):
		return m.heading.Render(line)
	case rulePattern.MatchString(line):
		return m.muted.Render(line)
	case quotePattern.MatchString(line):
		return m.quote.Render(line)
	}

	if parts := listPattern.FindStringSubmatch(line); parts != nil {
		return parts[1] + m.bullet.Render(parts[2]) + parts[3] + m.styleInline(parts[4])
	}
	return m.styleInline(line)
}

func (m *Markdown) styleInline(s string) string {
	s = boldPattern.ReplaceAllStringFunc(s, func(match string) string {
		return m.bold.Render(match[2 : len(match)-2])
	})
	return inlinePattern.ReplaceAllStringFunc(s, func(match string) string {
		return m.code.Render(match[1 : len(match)-1])
	})
}

// highlight applies chroma syntax highlighting to one line of code.
func (m *Markdown) highlight(line, lang string) string {
	if m.formatter == nil || line == "" {
		return line
	}

	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, line)
	if err != nil {
		return line
	}
	// Lexers append a newline to their input; drop it before styling so the
	// line stays a single row.
	tokens := iterator.Tokens()
	for i := len(tokens) - 1; i >= 0; i-- {
		tokens[i].Value = strings.TrimRight(tokens[i].Value, "\n")
		if tokens[i].Value != "" {
			break
		}
	}

	var buf strings.Builder
	if err := m.formatter.Format(&buf, m.chromaStyle, chroma.Literator(tokens...)); err != nil {
		return line
	}
	return buf.String()
}
