// SPDX-License-Identifier: GPL-3.0-or-later

package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bassosimone/pathspider/internal/flow"
	"github.com/bassosimone/pathspider/internal/packetsource"
)

// orderTrackingChain records when it was invoked, to assert declared order.
type orderTrackingChain struct {
	name       string
	log        *[]string
	vetoOnNew  bool
	stopOnPkt  bool
}

func (c *orderTrackingChain) Name() string { return c.name }

func (c *orderTrackingChain) NewFlow(rec *flow.Record, pkt packetsource.Packet) bool {
	*c.log = append(*c.log, c.name+":new")
	return !c.vetoOnNew
}

func (c *orderTrackingChain) Packet(rec *flow.Record, pkt packetsource.Packet, dir flow.Direction) bool {
	*c.log = append(*c.log, c.name+":pkt")
	return !c.stopOnPkt
}

func TestChainsRunInDeclaredOrder(t *testing.T) {
	var log []string
	chains := Chains{
		&orderTrackingChain{name: "a", log: &log},
		&orderTrackingChain{name: "b", log: &log},
	}
	rec := &flow.Record{}
	pkt := packetsource.Packet{Protocol: "tcp"}

	assert.True(t, chains.RunNewFlow(rec, pkt))
	chains.RunPacket(rec, pkt, flow.DirFwd)

	assert.Equal(t, []string{"a:new", "b:new", "a:pkt", "b:pkt"}, log)
}

func TestChainsNewFlowVetoShortCircuits(t *testing.T) {
	var log []string
	chains := Chains{
		&orderTrackingChain{name: "a", log: &log, vetoOnNew: true},
		&orderTrackingChain{name: "b", log: &log},
	}
	rec := &flow.Record{}
	ok := chains.RunNewFlow(rec, packetsource.Packet{Protocol: "tcp"})
	assert.False(t, ok)
	assert.Equal(t, []string{"a:new"}, log)
}

func TestChainsPacketStopShortCircuits(t *testing.T) {
	var log []string
	chains := Chains{
		&orderTrackingChain{name: "a", log: &log, stopOnPkt: true},
		&orderTrackingChain{name: "b", log: &log},
	}
	rec := &flow.Record{}
	chains.RunPacket(rec, packetsource.Packet{Protocol: "tcp"}, flow.DirFwd)
	assert.Equal(t, []string{"a:pkt"}, log)
}
