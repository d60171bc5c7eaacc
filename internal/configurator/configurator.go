// SPDX-License-Identifier: GPL-3.0-or-later

// Package configurator implements the two configuration-transition modes
// a plugin can request: [Synchronized], which gates every
// configuration-c probe behind a barrier, and [Desynchronized], which
// never transitions global state at all.
package configurator

import (
	"context"
	"fmt"
	"sync"

	"github.com/bassosimone/nop"
)

// Configurator transitions global configuration state between
// measurement rounds and lets workers wait for the transition they need.
type Configurator interface {
	// Prepare blocks until configuration c is active, running the
	// plugin's prepare hook for c if this is the first caller to need it.
	// A prepare failure is fatal to the run.
	Prepare(ctx context.Context, c int) error
}

// PrepareFunc realizes configuration index c, e.g. by writing a sysctl.
// A nil PrepareFunc is treated as always succeeding.
type PrepareFunc func(ctx context.Context, c int) error

// Synchronized gates every configuration-c probe behind a barrier: all
// workers finish configuration c-1 before Prepare(c) runs, so every probe
// enqueued for configuration c completes before any probe for c+1 is
// dispatched.
//
// The barrier itself — waiting for every configuration-(c-1) probe to
// finish — is the caller's responsibility (typically the worker pool,
// which knows when its queue for c-1 is empty); Synchronized only
// enforces that Prepare(c) runs at most once and that callers requesting
// c block until it has completed.
type Synchronized struct {
	prepare PrepareFunc
	logger  nop.SLogger

	mu     sync.Mutex
	done   map[int]error
	notify map[int]chan struct{}
}

// NewSynchronized returns a [Synchronized] configurator driven by prepare.
func NewSynchronized(prepare PrepareFunc, logger nop.SLogger) *Synchronized {
	if logger == nil {
		logger = nop.DefaultSLogger()
	}
	return &Synchronized{
		prepare: prepare,
		logger:  logger,
		done:    make(map[int]error),
		notify:  make(map[int]chan struct{}),
	}
}

var _ Configurator = (*Synchronized)(nil)

// Prepare implements [Configurator]. The first caller for a given c runs
// the prepare hook; concurrent and later callers for the same c block
// until it finishes (or return immediately once it has) and observe the
// same error.
func (s *Synchronized) Prepare(ctx context.Context, c int) error {
	s.mu.Lock()
	if err, ok := s.done[c]; ok {
		s.mu.Unlock()
		return err
	}
	ch, inFlight := s.notify[c]
	if inFlight {
		s.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
		err := s.done[c]
		s.mu.Unlock()
		return err
	}
	ch = make(chan struct{})
	s.notify[c] = ch
	s.mu.Unlock()

	s.logger.Info("configurator: preparing", "configuration", c)
	var err error
	if s.prepare != nil {
		err = s.prepare(ctx, c)
	}
	if err != nil {
		err = fmt.Errorf("configurator: prepare(%d) failed: %w", c, err)
		s.logger.Info("configurator: prepare failed", "configuration", c, "error", err.Error())
	}

	s.mu.Lock()
	s.done[c] = err
	s.mu.Unlock()
	close(ch)
	return err
}

// Desynchronized never transitions global state: prepare is a no-op and
// the configuration index is only a label each worker attaches to its own
// per-connection options.
type Desynchronized struct{}

var _ Configurator = Desynchronized{}

// Prepare implements [Configurator] and always succeeds immediately.
func (Desynchronized) Prepare(ctx context.Context, c int) error {
	return nil
}
