// SPDX-License-Identifier: GPL-3.0-or-later

package analyzer

import (
	"github.com/bassosimone/pathspider/internal/flow"
	"github.com/bassosimone/pathspider/internal/packetsource"
)

// BasicChain is the always-installed chain that vetoes flows whose
// protocol no plugin cares about, keeping every other chain free of
// protocol filtering logic.
type BasicChain struct {
	// Protocols is the set of protocol names kept in the flow table; any
	// other protocol is vetoed at NewFlow. Defaults to {"tcp"} when nil,
	// matching every built-in plugin.
	Protocols map[string]bool
}

// NewBasicChain returns a [BasicChain] that keeps only the given
// protocols, defaulting to "tcp" when none are given.
func NewBasicChain(protocols ...string) *BasicChain {
	if len(protocols) == 0 {
		protocols = []string{"tcp"}
	}
	set := make(map[string]bool, len(protocols))
	for _, p := range protocols {
		set[p] = true
	}
	return &BasicChain{Protocols: set}
}

var _ Chain = (*BasicChain)(nil)

// Name implements [Chain].
func (c *BasicChain) Name() string { return "basic" }

// NewFlow implements [Chain].
func (c *BasicChain) NewFlow(rec *flow.Record, pkt packetsource.Packet) bool {
	keep := c.Protocols[pkt.Protocol]
	if c.Protocols == nil {
		keep = pkt.Protocol == "tcp"
	}
	if !keep {
		rec.Basic.Vetoed = true
		return false
	}
	return true
}

// Packet implements [Chain]. The basic chain itself updates nothing: the
// first/last timestamp and packet/byte counters it's responsible for are
// maintained directly by the observer, since they apply regardless of
// which chains are installed.
func (c *BasicChain) Packet(rec *flow.Record, pkt packetsource.Packet, dir flow.Direction) bool {
	return true
}
