// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"sync/atomic"
)

// AbortState is the observable state of an AbortSignal.
type AbortState int32

const (
	StateRunning AbortState = iota
	StateCtrlC
	StateCtrlD
)

// String returns a short name for the state.
func (s AbortState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCtrlC:
		return "ctrl-c"
	case StateCtrlD:
		return "ctrl-d"
	default:
		return "unknown"
	}
}

// AbortSignal is a one-way flag shared by the renderer, the session
// controller and the provider. Any holder may set it; the first transition
// out of running wins and later ones are ignored.
type AbortSignal struct {
	state atomic.Int32
	done  chan struct{}
}

// NewAbortSignal returns a signal in the running state.
func NewAbortSignal() *AbortSignal {
	return &AbortSignal{done: make(chan struct{})}
}

// State returns the current state.
func (a *AbortSignal) State() AbortState {
	return AbortState(a.state.Load())
}

// Aborted reports whether the signal left the running state.
func (a *AbortSignal) Aborted() bool {
	return a.State() != StateRunning
}

// CtrlC reports whether the session was aborted by an interrupt.
func (a *AbortSignal) CtrlC() bool {
	return a.State() == StateCtrlC
}

// CtrlD reports whether the session was aborted by end of input.
func (a *AbortSignal) CtrlD() bool {
	return a.State() == StateCtrlD
}

// SetCtrlC marks an interrupt. Reports whether this call changed the state.
func (a *AbortSignal) SetCtrlC() bool {
	return a.set(StateCtrlC)
}

// SetCtrlD marks end of input. Reports whether this call changed the state.
func (a *AbortSignal) SetCtrlD() bool {
	return a.set(StateCtrlD)
}

// Done is closed when the signal leaves the running state.
func (a *AbortSignal) Done() <-chan struct{} {
	return a.done
}

func (a *AbortSignal) set(state AbortState) bool {
	if !a.state.CompareAndSwap(int32(StateRunning), int32(state)) {
		return false
	}
	close(a.done)
	return true
}
