// SPDX-License-Identifier: GPL-3.0-or-later

package analyzer

import (
	"github.com/bassosimone/pathspider/internal/flow"
	"github.com/bassosimone/pathspider/internal/packetsource"
)

// TFOChain parses the TCP Fast Open cookie exchange: on a bare SYN it
// records the cookie kind, length, sequence number, and payload length;
// on the matching SYN+ACK it records the ack cookie kind, length, and
// ack number.
type TFOChain struct{}

var _ Chain = TFOChain{}

// Name implements [Chain].
func (TFOChain) Name() string { return "tfo" }

// NewFlow implements [Chain].
func (TFOChain) NewFlow(rec *flow.Record, pkt packetsource.Packet) bool {
	rec.TFO = &flow.TFOFields{}
	return true
}

// Packet implements [Chain].
func (TFOChain) Packet(rec *flow.Record, pkt packetsource.Packet, dir flow.Direction) bool {
	if pkt.TCP == nil || !pkt.TCP.Flags.Has(packetsource.TCPSyn) {
		return true
	}
	tcp := pkt.TCP
	kind, cookie, ok := fastOpenCookie(ParseTCPOptions(tcp.Options))
	if !ok {
		return true
	}

	if tcp.Flags.Has(packetsource.TCPAck) {
		// Only a SYN+ACK matching a SYN already recorded on this flow
		// counts as the cookie's ack; a bare SYN+ACK with no preceding
		// SYN cookie is not an ack of anything this chain tracked.
		if rec.TFO.SynKind == 0 {
			return true
		}
		rec.TFO.AckKind = int(kind)
		rec.TFO.AckCookieLen = len(cookie)
		rec.TFO.Ack = tcp.Ack
	} else {
		rec.TFO.SynKind = int(kind)
		rec.TFO.SynCookieLen = len(cookie)
		rec.TFO.Seq = tcp.Seq
		rec.TFO.Dlen = tcp.PayloadLen
	}
	return true
}
