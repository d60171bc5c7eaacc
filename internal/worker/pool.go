// SPDX-License-Identifier: GPL-3.0-or-later

// Package worker implements the connector worker pool: a bounded set of
// goroutines that execute probe attempts for each job/configuration,
// honoring the configurator's barrier in synchronized mode and threading
// a job's scratch map between its own configurations in both modes.
package worker

import (
	"context"

	"github.com/bassosimone/nop"
	"github.com/bassosimone/pathspider/internal/configurator"
	"github.com/bassosimone/pathspider/internal/connector"
	"github.com/bassosimone/pathspider/internal/job"
	"github.com/bassosimone/pathspider/internal/record"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the default connector worker count.
const DefaultWorkers = 8

// Connectors holds exactly one [connector.Connector] per configuration
// index.
type Connectors []connector.Connector

// Pool executes probe requests against a fixed set of per-configuration
// connectors, bounding concurrency at Workers in-flight jobs.
type Pool struct {
	workers      int
	connectors   Connectors
	configurator configurator.Configurator
	onActive     func(job.Job, record.Active)
	logger       nop.SLogger
}

// Config configures a [Pool].
type Config struct {
	// Workers bounds the number of jobs processed concurrently. Defaults
	// to [DefaultWorkers].
	Workers int

	// Connectors holds exactly K connectors, one per configuration index.
	Connectors Connectors

	// Configurator gates probes behind configuration transitions.
	// Required; use [configurator.Desynchronized] when the plugin needs
	// no global state.
	Configurator configurator.Configurator

	// OnActive receives every active record as soon as a probe completes.
	// Required.
	OnActive func(job.Job, record.Active)

	// Logger defaults to a no-op logger.
	Logger nop.SLogger
}

// New returns a [*Pool] for cfg, applying defaults for zero fields.
func New(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Logger == nil {
		cfg.Logger = nop.DefaultSLogger()
	}
	return &Pool{
		workers:      cfg.Workers,
		connectors:   cfg.Connectors,
		configurator: cfg.Configurator,
		onActive:     cfg.OnActive,
		logger:       cfg.Logger,
	}
}

// K returns the number of configurations this pool's connectors cover.
func (p *Pool) K() int { return len(p.connectors) }

// probeOne executes one configuration's probe for job j, threading
// scratch and recording the baseline-failed flag that drives skip
// propagation.
func (p *Pool) probeOne(ctx context.Context, j job.Job, c int, scratch *job.Scratch) (record.Active, error) {
	if err := p.configurator.Prepare(ctx, c); err != nil {
		return record.Active{}, err
	}
	req := job.Request{Job: j, Config: c, Scratch: scratch}
	active := p.connectors[c].Connect(ctx, req, j.Addr)
	if c == 0 {
		scratch.BaselineFailed = active.State != record.StateOK
	}
	p.onActive(j, active)
	return active, nil
}

// RunDesynchronized streams jobs from jobs, dispatching each job's K
// configuration probes in sequence (scratch is transferred between them)
// while different jobs' probes interleave freely across the worker pool.
// It returns the first non-nil error any probe's prepare hook produced
// (a [configurator.Configurator] failure is fatal to the run), after
// every already-dispatched job has finished draining.
func (p *Pool) RunDesynchronized(ctx context.Context, jobs <-chan job.Job) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for j := range jobs {
		j := j
		g.Go(func() error {
			scratch := job.NewScratch()
			for c := 0; c < len(p.connectors); c++ {
				if _, err := p.probeOne(gctx, j, c, scratch); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// RunSynchronized processes a materialized job list in strict
// per-configuration rounds: every job's configuration-c probe finishes
// before the configurator transitions to c+1 and any job's
// configuration-(c+1) probe is dispatched. Synchronized mode requires
// the full job set up front because the barrier is global, not per-job.
func (p *Pool) RunSynchronized(ctx context.Context, jobs []job.Job) error {
	scratches := make([]*job.Scratch, len(jobs))
	for i := range scratches {
		scratches[i] = job.NewScratch()
	}
	for c := 0; c < len(p.connectors); c++ {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.workers)
		for i, j := range jobs {
			i, j := i, j
			g.Go(func() error {
				_, err := p.probeOne(gctx, j, c, scratches[i])
				return err
			})
		}
		if err := g.Wait(); err != nil {
			p.logger.Info("worker: synchronized round failed", "configuration", c, "error", err.Error())
			return err
		}
	}
	return nil
}
