// SPDX-License-Identifier: GPL-3.0-or-later

package analyzer

import (
	"github.com/bassosimone/pathspider/internal/flow"
	"github.com/bassosimone/pathspider/internal/packetsource"
)

// TCPChain tracks the handshake: SYN option bits by direction, the
// connected state, and per-direction FIN/RST.
type TCPChain struct{}

var _ Chain = TCPChain{}

// Name implements [Chain].
func (TCPChain) Name() string { return "tcp" }

// NewFlow implements [Chain].
func (TCPChain) NewFlow(rec *flow.Record, pkt packetsource.Packet) bool {
	rec.TCP = &flow.TCPFields{}
	return true
}

// Packet implements [Chain].
func (TCPChain) Packet(rec *flow.Record, pkt packetsource.Packet, dir flow.Direction) bool {
	if pkt.TCP == nil {
		return true
	}
	tcp := pkt.TCP

	if tcp.Flags.Has(packetsource.TCPSyn) && rec.TCP.SynFlags[dir] == 0 {
		rec.TCP.SynFlags[dir] = synFlagsFromWire(tcp.Flags)
	}
	if rec.TCP.SynFlags[flow.DirFwd] != 0 && rec.TCP.SynFlags[flow.DirRev] != 0 {
		rec.TCP.Connected = true
	}
	if tcp.Flags.Has(packetsource.TCPFin) {
		rec.TCP.Fin[dir] = true
	}
	if tcp.Flags.Has(packetsource.TCPRst) {
		rec.TCP.Rst[dir] = true
	}
	return true
}

// synFlagsFromWire projects the wire TCP flags onto the SYN/ACK/ECE/CWR
// bits [flow.TCPSynFlags] tracks, dropping the rest (FIN/RST/PSH/URG are
// tracked separately and never belong on a SYN anyway).
func synFlagsFromWire(f packetsource.TCPFlags) flow.TCPSynFlags {
	var out flow.TCPSynFlags
	if f.Has(packetsource.TCPSyn) {
		out |= flow.TCPSyn
	}
	if f.Has(packetsource.TCPAck) {
		out |= flow.TCPAck
	}
	if f.Has(packetsource.TCPEce) {
		out |= flow.TCPEce
	}
	if f.Has(packetsource.TCPCwr) {
		out |= flow.TCPCwr
	}
	return out
}
