// SPDX-License-Identifier: GPL-3.0-or-later

// Package plugin defines the contract a plugin implements to be runnable
// by the measurement core, and a compile-time registry of known plugins.
// There is no runtime plugin discovery: each plugin is a [*Descriptor]
// value constructed by an internal/plugins/* package and registered into
// a [Registry] at program start.
package plugin

import (
	"time"

	"github.com/bassosimone/nop"
	"github.com/bassosimone/pathspider/internal/analyzer"
	"github.com/bassosimone/pathspider/internal/configurator"
	"github.com/bassosimone/pathspider/internal/merger"
	"github.com/bassosimone/pathspider/internal/worker"
	"github.com/bassosimone/runtimex"
)

// Mode selects how the plugin's configurations transition.
type Mode int

const (
	// ModeDesynchronized runs prepare as a no-op; the configuration index
	// is only a label each connector uses directly.
	ModeDesynchronized Mode = iota
	// ModeSynchronized runs all K configurations in strict global rounds.
	ModeSynchronized
)

// Descriptor is the full contract a plugin supplies: its identity,
// configuration count, prepare hooks, connectors, installed analyzer
// chains, and verdict function.
type Descriptor struct {
	// Name identifies the plugin on the command line.
	Name string

	// Description is a one-line summary shown in CLI help.
	Description string

	// Mode selects [ModeSynchronized] or [ModeDesynchronized].
	Mode Mode

	// Prepare returns the prepare hook for configuration index c, or nil
	// for a no-op transition. Only consulted when Mode is
	// [ModeSynchronized]; ignored otherwise. May be nil entirely, meaning
	// every configuration's prepare is a no-op.
	Prepare func(c int) configurator.PrepareFunc

	// NewConnectors builds exactly K connectors, one per configuration
	// index, using cfg/logger/timeout supplied by the orchestrator.
	NewConnectors func(cfg *nop.Config, logger nop.SLogger, timeout time.Duration) worker.Connectors

	// Chains lists the analyzer chains to install on the observer for
	// this plugin's run.
	Chains analyzer.Chains

	// Combine implements the plugin's verdict function.
	Combine merger.CombineFunc
}

// k returns the number of configurations this plugin declares, derived
// from the length of NewConnectors' result for a throwaway config.
// Validate uses it to require at least one configuration, counted by a
// real construction rather than a guess.
func (d *Descriptor) k(cfg *nop.Config) int {
	return len(d.NewConnectors(cfg, nop.DefaultSLogger(), time.Second))
}

// Validate checks a descriptor's structural invariants: a name, a
// combine function, and at least one configuration. It panics (via
// [runtimex.Assert]) on a malformed descriptor — a registration-time
// programming error, not a runtime condition.
func (d *Descriptor) Validate() {
	runtimex.Assert(d.Name != "", "plugin: descriptor has empty Name")
	runtimex.Assert(d.Combine != nil, "plugin: descriptor "+d.Name+" has nil Combine")
	runtimex.Assert(d.NewConnectors != nil, "plugin: descriptor "+d.Name+" has nil NewConnectors")
	k := d.k(nop.NewConfig())
	runtimex.Assert(k > 0, "plugin: descriptor "+d.Name+" declares zero configurations")
}

// Registry is a compile-time table of known plugins, keyed by name.
type Registry map[string]*Descriptor

// NewRegistry builds a [Registry] from descriptors, validating each one.
func NewRegistry(descriptors ...*Descriptor) Registry {
	r := make(Registry, len(descriptors))
	for _, d := range descriptors {
		d.Validate()
		r[d.Name] = d
	}
	return r
}

// Lookup returns the descriptor registered under name.
func (r Registry) Lookup(name string) (*Descriptor, bool) {
	d, ok := r[name]
	return d, ok
}

// Names returns the registered plugin names, used to build CLI help and
// flag validation.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	return names
}
