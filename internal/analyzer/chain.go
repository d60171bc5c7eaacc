// SPDX-License-Identifier: GPL-3.0-or-later

// Package analyzer implements the observer's pluggable per-flow and
// per-packet accumulators: the basic chain every run installs, and the
// TCP, ECN, and TFO chains plugins opt into.
//
// Each chain owns a sub-struct on [flow.Record], composed by
// containment, and chains run in declared order, each seeing fields
// earlier chains in the same packet have already set.
package analyzer

import (
	"github.com/bassosimone/pathspider/internal/flow"
	"github.com/bassosimone/pathspider/internal/packetsource"
)

// Chain is one installable analyzer. Implementations must be stateless
// with respect to individual flows: all per-flow state lives on the
// [flow.Record] passed in, never on the Chain value itself, since a
// single Chain instance is shared across every flow in a run.
type Chain interface {
	// Name identifies the chain, used in logging only.
	Name() string

	// NewFlow initializes this chain's sub-struct on rec for a newly seen
	// 5-tuple. Returning false vetoes the flow entirely: the observer
	// discards rec and never calls Packet for this 5-tuple.
	NewFlow(rec *flow.Record, pkt packetsource.Packet) bool

	// Packet updates rec from one packet already classified into dir.
	// Returning false stops the observer from invoking subsequent chains
	// for this packet.
	Packet(rec *flow.Record, pkt packetsource.Packet, dir flow.Direction) bool
}

// Chains is an ordered, immutable set of installed analyzers, shared by
// every flow the observer demultiplexes in one run.
type Chains []Chain

// RunNewFlow runs every chain's NewFlow hook in order, short-circuiting on
// the first veto.
func (cs Chains) RunNewFlow(rec *flow.Record, pkt packetsource.Packet) bool {
	for _, c := range cs {
		if !c.NewFlow(rec, pkt) {
			return false
		}
	}
	return true
}

// RunPacket runs every chain's Packet hook in order, short-circuiting the
// moment one returns false.
func (cs Chains) RunPacket(rec *flow.Record, pkt packetsource.Packet, dir flow.Direction) {
	for _, c := range cs {
		if !c.Packet(rec, pkt, dir) {
			return
		}
	}
}
