// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

// EventKind tags a ReplyEvent.
type EventKind int

const (
	// EventText carries a reply fragment.
	EventText EventKind = iota
	// EventDone ends the event sequence.
	EventDone
)

// String returns the kind name.
func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventDone:
		return "done"
	default:
		return "unknown"
	}
}

// ReplyEvent is one item of the stream sent to the renderer.
type ReplyEvent struct {
	Kind EventKind
	Text string
}

// TextEvent creates a fragment event.
func TextEvent(text string) ReplyEvent {
	return ReplyEvent{Kind: EventText, Text: text}
}

// DoneEvent creates the terminating event.
func DoneEvent() ReplyEvent {
	return ReplyEvent{Kind: EventDone}
}
