// SPDX-License-Identifier: GPL-3.0-or-later

package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassosimone/pathspider/internal/flow"
	"github.com/bassosimone/pathspider/internal/packetsource"
)

func tcpPacket(flags packetsource.TCPFlags, payloadLen int) packetsource.Packet {
	return packetsource.Packet{
		Protocol: "tcp",
		TCP: &packetsource.TCPHeader{
			Flags:      flags,
			PayloadLen: payloadLen,
		},
	}
}

func TestTCPChainHandshakeAndClose(t *testing.T) {
	chain := TCPChain{}
	rec := &flow.Record{}
	require.True(t, chain.NewFlow(rec, tcpPacket(packetsource.TCPSyn, 0)))

	// Client's SYN (SEC-equivalent: SYN|ECE|CWR).
	chain.Packet(rec, tcpPacket(packetsource.TCPSyn|packetsource.TCPEce|packetsource.TCPCwr, 0), flow.DirFwd)
	assert.False(t, rec.TCP.Connected)

	// Server's SYN+ACK (SAE: SYN|ACK|ECE).
	chain.Packet(rec, tcpPacket(packetsource.TCPSyn|packetsource.TCPAck|packetsource.TCPEce, 0), flow.DirRev)
	assert.True(t, rec.TCP.Connected)
	assert.Equal(t, flow.TCPSec, rec.TCP.SynFlags[flow.DirFwd])
	assert.Equal(t, flow.TCPSae, rec.TCP.SynFlags[flow.DirRev])

	chain.Packet(rec, tcpPacket(packetsource.TCPFin|packetsource.TCPAck, 0), flow.DirFwd)
	assert.False(t, rec.TCP.Complete())
	chain.Packet(rec, tcpPacket(packetsource.TCPFin|packetsource.TCPAck, 0), flow.DirRev)
	assert.True(t, rec.TCP.Complete())
}

func TestTCPChainRst(t *testing.T) {
	chain := TCPChain{}
	rec := &flow.Record{}
	chain.NewFlow(rec, tcpPacket(packetsource.TCPSyn, 0))
	chain.Packet(rec, tcpPacket(packetsource.TCPRst, 0), flow.DirRev)
	assert.True(t, rec.TCP.Complete())
}

func TestTCPChainIgnoresNonTCPPacket(t *testing.T) {
	chain := TCPChain{}
	rec := &flow.Record{}
	chain.NewFlow(rec, packetsource.Packet{Protocol: "udp"})
	keep := chain.Packet(rec, packetsource.Packet{Protocol: "udp"}, flow.DirFwd)
	assert.True(t, keep)
}
