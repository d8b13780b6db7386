// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
)

// RenderDocument renders a complete reply as markdown. Without highlighting,
// or when the renderer fails, text is returned as is.
func RenderDocument(text string, opts MarkdownOptions) string {
	if !opts.Highlight || opts.Profile == termenv.Ascii {
		if opts.Wrap > 0 {
			return NewMarkdown(MarkdownOptions{Wrap: opts.Wrap, Profile: termenv.Ascii}).Render(text)
		}
		return text
	}

	style := "dark"
	if opts.Theme == "light" {
		style = "light"
	}
	options := []glamour.TermRendererOption{
		glamour.WithStandardStyle(style),
		glamour.WithColorProfile(opts.Profile),
		glamour.WithWordWrap(opts.Wrap),
	}

	renderer, err := glamour.NewTermRenderer(options...)
	if err != nil {
		return text
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(rendered, "\n")
}
