// SPDX-License-Identifier: GPL-3.0-or-later

// Package observer drives a packet source through the flow table and the
// installed analyzer chains, emitting completed flow records.
package observer

import (
	"context"
	"errors"
	"time"

	"github.com/bassosimone/nop"
	"github.com/bassosimone/pathspider/internal/analyzer"
	"github.com/bassosimone/pathspider/internal/flow"
	"github.com/bassosimone/pathspider/internal/packetsource"
)

// DefaultIdleTimeout is the default per-flow inactivity timeout.
const DefaultIdleTimeout = 30 * time.Second

// DefaultSweepInterval is how often the observer checks for idle flows.
const DefaultSweepInterval = 5 * time.Second

// Config configures an [Observer].
type Config struct {
	// Source is the packet stream to drive. Required.
	Source packetsource.Source

	// Chains are the installed analyzers, run in this order for every
	// packet.
	Chains analyzer.Chains

	// Local is the vantage point's local address set, used to canonicalize
	// each packet's 5-tuple and direction.
	Local LocalAddrSet

	// IdleTimeout is the per-flow inactivity timeout. Defaults to
	// [DefaultIdleTimeout].
	IdleTimeout time.Duration

	// SweepInterval is how often idle flows are checked for eviction.
	// Defaults to [DefaultSweepInterval].
	SweepInterval time.Duration

	// Emit receives every flow record as it completes, naturally or via
	// idle timeout or shutdown drain. Required.
	Emit func(*flow.Record)

	// Logger receives lifecycle events. Defaults to a no-op logger.
	Logger nop.SLogger

	// Now returns the current time, overridable for tests.
	Now func() time.Time
}

// Observer drives one packet source to completion.
type Observer struct {
	cfg   Config
	table *flow.Table
}

// New returns an [Observer] for cfg, applying defaults for zero fields.
func New(cfg Config) *Observer {
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = nop.DefaultSLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Observer{cfg: cfg, table: flow.NewTable()}
}

// Table returns the underlying flow table, exposed for the merger and
// tests to inspect in-flight flows without depending on Observer
// internals.
func (o *Observer) Table() *flow.Table { return o.table }

type nextResult struct {
	pkt packetsource.Packet
	err error
}

// Run drives the packet source until ctx is canceled or the source
// ends. On a clean EOF it returns nil after flushing every in-flight
// flow; on any other error, or on ctx cancellation, it flushes then
// returns that error.
func (o *Observer) Run(ctx context.Context) error {
	ch := make(chan nextResult)
	go func() {
		for {
			pkt, err := o.cfg.Source.Next(ctx)
			select {
			case ch <- nextResult{pkt: pkt, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(o.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.cfg.Logger.Info("observer: context canceled, draining")
			o.drain()
			return ctx.Err()

		case res := <-ch:
			if res.err != nil {
				o.drain()
				if errors.Is(res.err, packetsource.ErrEOF) {
					o.cfg.Logger.Info("observer: source exhausted")
					return nil
				}
				o.cfg.Logger.Info("observer: source broke", "error", res.err.Error())
				return res.err
			}
			o.handlePacket(res.pkt)

		case now := <-ticker.C:
			for _, rec := range o.table.Sweep(now, o.cfg.IdleTimeout) {
				o.cfg.Logger.Debug("observer: idle flow evicted", "tuple", rec.Tuple)
				o.cfg.Emit(rec)
			}
		}
	}
}

func (o *Observer) handlePacket(pkt packetsource.Packet) {
	tuple, dir, srcAddr := canonicalize(pkt, o.cfg.Local)

	rec, _, ok := o.table.GetOrCreate(tuple, pkt.Timestamp, func() (*flow.Record, bool) {
		r := &flow.Record{SrcAddr: srcAddr}
		if !o.cfg.Chains.RunNewFlow(r, pkt) {
			return r, false
		}
		return r, true
	})
	if !ok {
		return // vetoed by a chain (e.g. uninteresting protocol)
	}

	o.cfg.Chains.RunPacket(rec, pkt, dir)
	rec.Last = pkt.Timestamp
	rec.Packets[dir]++
	if pkt.TCP != nil {
		rec.Bytes[dir] += uint64(pkt.TCP.PayloadLen)
	}

	if rec.TCP.Complete() {
		if emitted, ok := o.table.Emit(tuple); ok {
			o.cfg.Emit(emitted)
		}
	}
}

// drain flushes every in-flight flow record, used on shutdown regardless
// of whether each flow had naturally closed.
func (o *Observer) drain() {
	for _, rec := range o.table.DrainAll() {
		o.cfg.Emit(rec)
	}
}
