// SPDX-License-Identifier: GPL-3.0-or-later

package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bassosimone/pathspider/internal/flow"
	"github.com/bassosimone/pathspider/internal/packetsource"
)

func TestBasicChainVetoesUninterestingProtocol(t *testing.T) {
	chain := NewBasicChain("tcp")
	rec := &flow.Record{}
	keep := chain.NewFlow(rec, packetsource.Packet{Protocol: "icmp"})
	assert.False(t, keep)
	assert.True(t, rec.Basic.Vetoed)
}

func TestBasicChainKeepsConfiguredProtocol(t *testing.T) {
	chain := NewBasicChain("tcp", "udp")
	rec := &flow.Record{}
	assert.True(t, chain.NewFlow(rec, packetsource.Packet{Protocol: "udp"}))
	assert.False(t, rec.Basic.Vetoed)
}

func TestNewBasicChainDefaultsToTCP(t *testing.T) {
	chain := NewBasicChain()
	rec := &flow.Record{}
	assert.True(t, chain.NewFlow(rec, packetsource.Packet{Protocol: "tcp"}))
}
