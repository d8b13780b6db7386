// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NoSinksIsNop(t *testing.T) {
	l, closeFn, err := New(Options{})
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, zerolog.Disabled, l.GetLevel())
	assert.NoError(t, closeFn())
}

func TestNew_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "rigchat.log")

	l, closeFn, err := New(Options{File: path})
	require.NoError(t, err)

	l.Info().Str("model", "openai:gpt-4o").Msg("request sent")
	l.Debug().Msg("hidden at info level")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "request sent", entry["message"])
	assert.Equal(t, "openai:gpt-4o", entry["model"])
	_, hasTime := entry["time"]
	assert.True(t, hasTime, "expected 'time' field in log entry")

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Zero(t, info.Mode().Perm()&0077, "log file must not be group/world accessible")
	}
}

func TestNew_VerboseWritesStderr(t *testing.T) {
	var buf bytes.Buffer
	l, _, err := New(Options{Verbose: true, Stderr: &buf})
	require.NoError(t, err)

	l.Debug().Msg("debug visible")
	assert.Contains(t, buf.String(), "debug visible")
}

func TestWith_AddsField(t *testing.T) {
	var buf bytes.Buffer
	base := &Logger{zerolog.New(&buf)}

	base.With("session", "abc").Info().Msg("hi")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc", entry["session"])
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{zerolog.New(&buf)}
	ctx := l.WithContext(context.Background())

	FromContext(ctx).Info().Msg("from ctx")
	assert.Contains(t, buf.String(), "from ctx")
}

func TestFromContext_Empty(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	l.Info().Msg("goes nowhere")
}
