// SPDX-License-Identifier: GPL-3.0-or-later

// Package pathspider is the top-level measurement pipeline orchestrator:
// it wires a job source, a configurator, a connector worker pool, a
// packet observer, and a merger for one registered plugin, and drives a
// single measurement run end to end.
package pathspider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"time"

	"github.com/bassosimone/nop"
	"github.com/bassosimone/pathspider/internal/configurator"
	"github.com/bassosimone/pathspider/internal/job"
	"github.com/bassosimone/pathspider/internal/jobsource"
	"github.com/bassosimone/pathspider/internal/merger"
	"github.com/bassosimone/pathspider/internal/observer"
	"github.com/bassosimone/pathspider/internal/packetsource"
	"github.com/bassosimone/pathspider/internal/plugin"
	"github.com/bassosimone/pathspider/internal/record"
	"github.com/bassosimone/pathspider/internal/sink"
	"github.com/bassosimone/pathspider/internal/worker"
	"golang.org/x/sync/errgroup"
)

// ShutdownGrace bounds how long the observer keeps draining the packet
// source after the job queue empties, so trailing FIN/RST packets still
// reach their flow records before shutdown.
const ShutdownGrace = 10 * time.Second

// Config configures one measurement [Run].
type Config struct {
	// Plugin is the descriptor to run. Required.
	Plugin *plugin.Descriptor

	// Input supplies newline-delimited jobs.
	Input io.Reader

	// Output receives newline-delimited verdicts.
	Output io.Writer

	// Source is the packet stream to observe, already opened by the
	// caller (trace URIs like "pcap:FILE" and "int:IFACE" resolve via
	// [packetsource.Open]). Required.
	Source packetsource.Source

	// LocalAddrs is the vantage point's local address set, which decides
	// the forward direction of every observed flow.
	LocalAddrs []netip.Addr

	// Workers bounds connector concurrency. Defaults to
	// [worker.DefaultWorkers].
	Workers int

	// ProbeTimeout bounds one probe. Defaults to
	// [github.com/bassosimone/pathspider/internal/connector.DefaultTimeout].
	ProbeTimeout time.Duration

	// IdleTimeout bounds flow inactivity. Defaults to
	// [observer.DefaultIdleTimeout].
	IdleTimeout time.Duration

	// MergeTimeout bounds the per-job merge window. Defaults to
	// [merger.DefaultMergeTimeout].
	MergeTimeout time.Duration

	// NetConfig carries dialer/error-classifier/clock defaults for every
	// connector. Defaults to [nop.NewConfig].
	NetConfig *nop.Config

	// Logger receives lifecycle events across every component. Defaults
	// to a no-op logger.
	Logger nop.SLogger
}

func (c *Config) setDefaults() {
	if c.Workers <= 0 {
		c.Workers = worker.DefaultWorkers
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 5 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = observer.DefaultIdleTimeout
	}
	if c.MergeTimeout <= 0 {
		c.MergeTimeout = merger.DefaultMergeTimeout
	}
	if c.NetConfig == nil {
		c.NetConfig = nop.NewConfig()
	}
	if c.Logger == nil {
		c.Logger = nop.DefaultSLogger()
	}
}

// Run executes one measurement end to end: it reads jobs, drives probes
// through the configured plugin's connectors and the packet observer,
// merges the two record streams, and writes one verdict per job.
func Run(ctx context.Context, cfg Config) error {
	cfg.setDefaults()
	d := cfg.Plugin

	connectors := d.NewConnectors(cfg.NetConfig, cfg.Logger, cfg.ProbeTimeout)

	sinkWriter := sink.New(cfg.Output)
	defer sinkWriter.Close()

	m := merger.New(merger.Config{
		K:            len(connectors),
		MergeTimeout: cfg.MergeTimeout,
		Combine:      d.Combine,
		Logger:       cfg.Logger,
		Emit: func(v merger.Verdict) {
			if err := sinkWriter.Write(v); err != nil {
				cfg.Logger.Info("pathspider: sink write failed", "jobID", v.Target.ID, "error", err.Error())
			}
		},
	})

	cfgr := buildConfigurator(d, cfg.Logger)
	pool := worker.New(worker.Config{
		Workers:      cfg.Workers,
		Connectors:   connectors,
		Configurator: cfgr,
		Logger:       cfg.Logger,
		OnActive: func(j job.Job, a record.Active) {
			m.SubmitActive(j, a)
		},
	})

	defer cfg.Source.Close()

	obsCtx, obsCancel := context.WithCancel(ctx)
	defer obsCancel()
	obs := observer.New(observer.Config{
		Source:      cfg.Source,
		Chains:      d.Chains,
		Local:       observer.NewLocalAddrSet(cfg.LocalAddrs...),
		IdleTimeout: cfg.IdleTimeout,
		Logger:      cfg.Logger,
		Emit:        m.SubmitFlow,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := obs.Run(obsCtx)
		// The grace-period cancellation after the job queue empties is a
		// clean drain, not a failure; only propagate cancellation that
		// came from the caller.
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			return nil
		}
		return err
	})

	g.Go(func() error {
		defer func() {
			time.AfterFunc(ShutdownGrace, obsCancel)
		}()
		return runJobs(gctx, d, pool, cfg.Input)
	})

	sweepTicker := time.NewTicker(observer.DefaultSweepInterval)
	defer sweepTicker.Stop()
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		for {
			select {
			case <-gctx.Done():
				return
			case now := <-sweepTicker.C:
				m.Sweep(now)
			}
		}
	}()

	err := g.Wait()
	<-sweepDone
	m.Flush()
	return err
}

func buildConfigurator(d *plugin.Descriptor, logger nop.SLogger) configurator.Configurator {
	if d.Mode != plugin.ModeSynchronized {
		return configurator.Desynchronized{}
	}
	return configurator.NewSynchronized(func(ctx context.Context, c int) error {
		if d.Prepare == nil {
			return nil
		}
		f := d.Prepare(c)
		if f == nil {
			return nil
		}
		return f(ctx, c)
	}, logger)
}

// runJobs drains the job source appropriately for the plugin's mode:
// synchronized plugins need the full job set materialized up front
// because their round barrier is global, desynchronized plugins stream
// jobs as they arrive.
func runJobs(ctx context.Context, d *plugin.Descriptor, pool *worker.Pool, input io.Reader) error {
	src := jobsource.New(input)
	if d.Mode == plugin.ModeSynchronized {
		jobs, err := jobsource.All(src)
		if err != nil {
			return fmt.Errorf("pathspider: reading jobs: %w", err)
		}
		return pool.RunSynchronized(ctx, jobs)
	}

	ch := make(chan job.Job)
	errCh := make(chan error, 1)
	go func() {
		defer close(ch)
		for {
			j, err := src.Next()
			if err != nil {
				if err != io.EOF {
					errCh <- fmt.Errorf("pathspider: reading jobs: %w", err)
				}
				return
			}
			select {
			case ch <- j:
			case <-ctx.Done():
				return
			}
		}
	}()
	if err := pool.RunDesynchronized(ctx, ch); err != nil {
		return err
	}
	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}
