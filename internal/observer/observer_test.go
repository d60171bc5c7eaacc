// SPDX-License-Identifier: GPL-3.0-or-later

package observer

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassosimone/pathspider/internal/analyzer"
	"github.com/bassosimone/pathspider/internal/flow"
	"github.com/bassosimone/pathspider/internal/packetsource"
)

var (
	localAddr  = netip.MustParseAddr("198.51.100.1")
	remoteAddr = netip.MustParseAddr("203.0.113.1")
)

func synPkt(ts time.Time, src, dst netip.Addr, srcPort, dstPort uint16, flags packetsource.TCPFlags, ecn packetsource.ECN) packetsource.Packet {
	return packetsource.Packet{
		Timestamp:    ts,
		Protocol:     "tcp",
		SrcAddr:      src,
		DstAddr:      dst,
		ECNCodepoint: ecn,
		TCP: &packetsource.TCPHeader{
			SrcPort: srcPort,
			DstPort: dstPort,
			Flags:   flags,
		},
	}
}

func TestObserverEmitsOnNaturalClose(t *testing.T) {
	now := time.Now()
	packets := []packetsource.Packet{
		synPkt(now, localAddr, remoteAddr, 46557, 80, packetsource.TCPSyn|packetsource.TCPEce|packetsource.TCPCwr, packetsource.ECNNotECT),
		synPkt(now, remoteAddr, localAddr, 80, 46557, packetsource.TCPSyn|packetsource.TCPAck|packetsource.TCPEce, packetsource.ECNECT0),
		synPkt(now, localAddr, remoteAddr, 46557, 80, packetsource.TCPAck, packetsource.ECNNotECT),
		synPkt(now, localAddr, remoteAddr, 46557, 80, packetsource.TCPFin|packetsource.TCPAck, packetsource.ECNNotECT),
		synPkt(now, remoteAddr, localAddr, 80, 46557, packetsource.TCPFin|packetsource.TCPAck, packetsource.ECNNotECT),
	}
	src := packetsource.NewMockSource(packets)

	var emitted []*flow.Record
	obs := New(Config{
		Source: src,
		Chains: analyzer.Chains{analyzer.NewBasicChain("tcp"), analyzer.TCPChain{}, analyzer.ECNChain{}},
		Local:  NewLocalAddrSet(localAddr),
		Emit:   func(rec *flow.Record) { emitted = append(emitted, rec) },
	})

	err := obs.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, emitted, 1)

	rec := emitted[0]
	assert.Equal(t, uint16(46557), rec.Tuple.SrcPort)
	assert.Equal(t, uint16(80), rec.Tuple.DstPort)
	assert.True(t, rec.TCP.Connected)
	assert.Equal(t, flow.TCPSec, rec.TCP.SynFlags[flow.DirFwd])
	assert.Equal(t, flow.TCPSae, rec.TCP.SynFlags[flow.DirRev])
	assert.True(t, rec.ECN.Ect0Syn[flow.DirRev])
	assert.False(t, rec.ECN.Ect0Syn[flow.DirFwd])
}

func TestObserverVetoesUninterestingProtocol(t *testing.T) {
	now := time.Now()
	packets := []packetsource.Packet{
		{Timestamp: now, Protocol: "icmp", SrcAddr: localAddr, DstAddr: remoteAddr},
	}
	src := packetsource.NewMockSource(packets)

	var emitted []*flow.Record
	obs := New(Config{
		Source: src,
		Chains: analyzer.Chains{analyzer.NewBasicChain("tcp")},
		Local:  NewLocalAddrSet(localAddr),
		Emit:   func(rec *flow.Record) { emitted = append(emitted, rec) },
	})

	require.NoError(t, obs.Run(context.Background()))
	assert.Empty(t, emitted)
	assert.Equal(t, 0, obs.Table().Len())
}

func TestObserverDrainsOnShutdown(t *testing.T) {
	now := time.Now()
	// A SYN with no matching close: observer should still emit it on drain.
	packets := []packetsource.Packet{
		synPkt(now, localAddr, remoteAddr, 46557, 80, packetsource.TCPSyn, packetsource.ECNNotECT),
	}
	src := packetsource.NewMockSource(packets)
	src.SetBreak(assertError{})

	var emitted []*flow.Record
	obs := New(Config{
		Source: src,
		Chains: analyzer.Chains{analyzer.NewBasicChain("tcp"), analyzer.TCPChain{}},
		Local:  NewLocalAddrSet(localAddr),
		Emit:   func(rec *flow.Record) { emitted = append(emitted, rec) },
	})

	err := obs.Run(context.Background())
	require.Error(t, err)
	require.Len(t, emitted, 1)
	assert.False(t, emitted[0].TCP.Complete())
}

func TestObserverRespectsContextCancellation(t *testing.T) {
	src := blockingSource{}
	ctx, cancel := context.WithCancel(context.Background())

	obs := New(Config{
		Source: src,
		Chains: analyzer.Chains{analyzer.NewBasicChain("tcp")},
		Local:  NewLocalAddrSet(localAddr),
		Emit:   func(rec *flow.Record) {},
	})

	done := make(chan error, 1)
	go func() { done <- obs.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("observer did not stop after context cancellation")
	}
}

type assertError struct{}

func (assertError) Error() string { return "capture broke" }

// blockingSource never yields a packet, so Run can only return once the
// context is canceled.
type blockingSource struct{}

func (blockingSource) Next(ctx context.Context) (packetsource.Packet, error) {
	<-ctx.Done()
	return packetsource.Packet{}, ctx.Err()
}

func (blockingSource) Close() error { return nil }
