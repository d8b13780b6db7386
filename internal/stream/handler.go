// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"strings"
	"sync"
)

// ErrAborted is returned by ReplyStreamHandler.Text once the abort signal is
// set, telling the provider to stop reading.
var ErrAborted = errors.New("reply stream aborted")

// ReplyStreamHandler forwards reply fragments to the renderer.
//
// Text events keep their call order, Done is sent at most once and nothing is
// sent after it. Once the abort signal is set no call blocks, even if the
// renderer has stopped reading.
type ReplyStreamHandler struct {
	mu     sync.Mutex
	events chan<- ReplyEvent
	abort  *AbortSignal
	buffer strings.Builder
	done   bool
}

// NewReplyStreamHandler creates a handler writing to events.
func NewReplyStreamHandler(events chan<- ReplyEvent, abort *AbortSignal) *ReplyStreamHandler {
	if abort == nil {
		abort = NewAbortSignal()
	}
	return &ReplyStreamHandler{events: events, abort: abort}
}

// Abort returns the shared abort signal.
func (h *ReplyStreamHandler) Abort() *AbortSignal {
	return h.abort
}

// Text forwards a fragment. Empty fragments are dropped, as is anything after
// Done.
func (h *ReplyStreamHandler) Text(text string) error {
	if text == "" {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.done {
		return nil
	}
	if h.abort.Aborted() {
		return ErrAborted
	}

	h.buffer.WriteString(text)
	if !h.send(TextEvent(text)) {
		return ErrAborted
	}
	return nil
}

// Done ends the event sequence. Calls after the first are no-ops.
func (h *ReplyStreamHandler) Done() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.done {
		return
	}
	h.done = true
	h.send(DoneEvent())
}

// IsDone reports whether Done was called.
func (h *ReplyStreamHandler) IsDone() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

// Buffer returns every fragment accepted so far.
func (h *ReplyStreamHandler) Buffer() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buffer.String()
}

// send delivers ev unless the abort signal fires first. Caller holds mu.
func (h *ReplyStreamHandler) send(ev ReplyEvent) bool {
	if h.events == nil {
		return true
	}
	select {
	case h.events <- ev:
		return true
	case <-h.abort.Done():
		// Prefer delivery when the renderer is still able to take it.
		select {
		case h.events <- ev:
			return true
		default:
			return false
		}
	}
}
