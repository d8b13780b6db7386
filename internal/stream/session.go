// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeranaias/rigchat/internal/logger"
)

// DefaultPollInterval is how often the abort watcher checks the signal.
const DefaultPollInterval = 100 * time.Millisecond

// Retrieval fetches a reply and forwards its fragments to the handler.
type Retrieval func(ctx context.Context, handler *ReplyStreamHandler) error

// Outcome names the branch that ended a session.
type Outcome int

const (
	// OutcomeCompleted: retrieval finished, successfully or not.
	OutcomeCompleted Outcome = iota
	// OutcomeAborted: the abort signal was observed by the watcher.
	OutcomeAborted
	// OutcomeInterrupted: a process interrupt arrived.
	OutcomeInterrupted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeAborted:
		return "aborted"
	case OutcomeInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// =============================================================================
// SESSION
// =============================================================================

// Session races three branches and lets the first to finish decide the result:
//
//   - retrieval: runs the Retrieval, then sends Done and returns its error
//   - abort watch: polls the abort signal, then sends Done and returns nil
//   - interrupt: waits for a process interrupt, marks ctrl-c and returns nil
//     without sending Done, since the renderer sees the same interrupt
//
// The losing branches are cancelled and have no further side effects.
type Session struct {
	pollInterval time.Duration
	interrupts   <-chan os.Signal
	log          *logger.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithPollInterval sets the abort watcher interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithInterrupts replaces process signal delivery with ch.
func WithInterrupts(ch <-chan os.Signal) Option {
	return func(s *Session) { s.interrupts = ch }
}

// WithLogger sets the session logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Session) { s.log = l }
}

// NewSession creates a session controller.
func NewSession(opts ...Option) *Session {
	s := &Session{pollInterval: DefaultPollInterval}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type result struct {
	outcome Outcome
	err     error
}

// Run streams one reply. Aborts and interrupts end the session without error.
func (s *Session) Run(ctx context.Context, handler *ReplyStreamHandler, retrieve Retrieval) (Outcome, error) {
	log := s.log
	if log == nil {
		log = logger.FromContext(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	interrupts := s.interrupts
	if interrupts == nil {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt)
		defer signal.Stop(sigs)
		interrupts = sigs
	}

	abort := handler.Abort()
	started := time.Now()

	var decided atomic.Bool
	claim := func() bool { return decided.CompareAndSwap(false, true) }
	results := make(chan result, 1)

	// Retrieval is abandoned, not awaited, once another branch wins.
	go func() {
		err := retrieve(ctx, handler)
		if errors.Is(err, ErrAborted) {
			// The abort watcher reports this session.
			return
		}
		if !claim() {
			return
		}
		handler.Done()
		if err != nil {
			err = fmt.Errorf("failed to get answer: %w", err)
		}
		results <- result{OutcomeCompleted, err}
	}()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			if abort.Aborted() {
				if claim() {
					handler.Done()
					results <- result{OutcomeAborted, nil}
				}
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
		case <-interrupts:
			if claim() {
				abort.SetCtrlC()
				results <- result{OutcomeInterrupted, nil}
			}
		}
	}()

	res := <-results
	cancel()
	wg.Wait()

	ev := log.Debug().
		Str("outcome", res.outcome.String()).
		Str("abort", abort.State().String()).
		Dur("elapsed", time.Since(started))
	if res.err != nil {
		ev = ev.Err(res.err)
	}
	ev.Msg("stream session finished")

	return res.outcome, res.err
}
