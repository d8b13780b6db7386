// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// MaxLineSize bounds a single SSE or NDJSON line.
const MaxLineSize = 1024 * 1024

// errLineTooLong is returned when a stream line exceeds MaxLineSize.
var errLineTooLong = errors.New("stream line too long")

// =============================================================================
// SSE
// =============================================================================

// sseReader parses Server-Sent Events from a response body.
type sseReader struct {
	reader *bufio.Reader
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{reader: bufio.NewReader(r)}
}

// ReadEvent reads the next event and returns its type (empty when the stream
// sends none) and data lines joined by newlines. Returns io.EOF at the end.
func (s *sseReader) ReadEvent() (string, []byte, error) {
	var eventType string
	var dataLines [][]byte

	for {
		line, err := readLine(s.reader)
		if err != nil {
			if err == io.EOF && len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			return "", nil, err
		}

		// Empty line ends the event.
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			eventType = ""
			continue
		}

		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			eventType = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			data := line[len("data:"):]
			if len(data) > 0 && data[0] == ' ' {
				data = data[1:]
			}
			dataLines = append(dataLines, data)
		}
		// id:, retry: and ":" comments are ignored.
	}
}

// =============================================================================
// NDJSON
// =============================================================================

// lineReader yields non-empty lines of a newline-delimited JSON stream.
type lineReader struct {
	reader *bufio.Reader
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{reader: bufio.NewReader(r)}
}

// Next returns the next non-empty line or io.EOF.
func (l *lineReader) Next() ([]byte, error) {
	for {
		line, err := readLine(l.reader)
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(line)) > 0 {
			return line, nil
		}
	}
}

// readLine reads one line without its terminator. A final line without a
// newline is returned before io.EOF.
func readLine(r *bufio.Reader) ([]byte, error) {
	var buf []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if err == io.EOF && len(buf) > 0 {
				return buf, nil
			}
			return nil, err
		}
		buf = append(buf, chunk...)
		if len(buf) > MaxLineSize {
			return nil, errLineTooLong
		}
		if !isPrefix {
			return bytes.TrimRight(buf, "\r"), nil
		}
	}
}
