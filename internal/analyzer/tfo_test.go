// SPDX-License-Identifier: GPL-3.0-or-later

package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bassosimone/pathspider/internal/flow"
	"github.com/bassosimone/pathspider/internal/packetsource"
)

func TestTFOChainSynThenAck(t *testing.T) {
	chain := TFOChain{}
	rec := &flow.Record{}
	chain.NewFlow(rec, packetsource.Packet{Protocol: "tcp"})

	syn := packetsource.Packet{
		Protocol: "tcp",
		TCP: &packetsource.TCPHeader{
			Flags:      packetsource.TCPSyn,
			Seq:        1000,
			PayloadLen: 16,
			Options:    []byte{34, 6, 1, 2, 3, 4, 0},
		},
	}
	chain.Packet(rec, syn, flow.DirFwd)
	assert.Equal(t, 34, rec.TFO.SynKind)
	assert.Equal(t, 4, rec.TFO.SynCookieLen)
	assert.Equal(t, uint32(1000), rec.TFO.Seq)
	assert.Equal(t, 16, rec.TFO.Dlen)

	ack := packetsource.Packet{
		Protocol: "tcp",
		TCP: &packetsource.TCPHeader{
			Flags:   packetsource.TCPSyn | packetsource.TCPAck,
			Ack:     1001,
			Options: []byte{34, 6, 1, 2, 3, 4, 0},
		},
	}
	chain.Packet(rec, ack, flow.DirRev)
	assert.Equal(t, 34, rec.TFO.AckKind)
	assert.Equal(t, 4, rec.TFO.AckCookieLen)
	assert.Equal(t, uint32(1001), rec.TFO.Ack)
}

func TestTFOChainNoCookiePresent(t *testing.T) {
	chain := TFOChain{}
	rec := &flow.Record{}
	chain.NewFlow(rec, packetsource.Packet{Protocol: "tcp"})

	syn := packetsource.Packet{
		Protocol: "tcp",
		TCP:      &packetsource.TCPHeader{Flags: packetsource.TCPSyn, Options: []byte{2, 4, 0x02, 0x18, 0}},
	}
	chain.Packet(rec, syn, flow.DirFwd)
	assert.Equal(t, 0, rec.TFO.SynKind)
	assert.Equal(t, 0, rec.TFO.SynCookieLen)
}

func TestTFOChainIgnoresAckWithoutPriorSyn(t *testing.T) {
	chain := TFOChain{}
	rec := &flow.Record{}
	chain.NewFlow(rec, packetsource.Packet{Protocol: "tcp"})

	ack := packetsource.Packet{
		Protocol: "tcp",
		TCP: &packetsource.TCPHeader{
			Flags:   packetsource.TCPSyn | packetsource.TCPAck,
			Ack:     5001,
			Options: []byte{34, 6, 1, 2, 3, 4, 0},
		},
	}
	chain.Packet(rec, ack, flow.DirRev)
	assert.Equal(t, 0, rec.TFO.AckKind)
	assert.Equal(t, 0, rec.TFO.AckCookieLen)
	assert.Equal(t, uint32(0), rec.TFO.Ack)
}

func TestTFOChainIgnoresNonSyn(t *testing.T) {
	chain := TFOChain{}
	rec := &flow.Record{}
	chain.NewFlow(rec, packetsource.Packet{Protocol: "tcp"})

	data := packetsource.Packet{
		Protocol: "tcp",
		TCP:      &packetsource.TCPHeader{Flags: packetsource.TCPAck, Options: []byte{34, 6, 1, 2, 3, 4, 0}},
	}
	chain.Packet(rec, data, flow.DirFwd)
	assert.Equal(t, 0, rec.TFO.SynKind)
}
