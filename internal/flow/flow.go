// SPDX-License-Identifier: GPL-3.0-or-later

// Package flow defines the canonical flow identity and the flow table that
// the observer (package observer) maintains while demultiplexing a packet
// stream into per-connection records.
//
// Canonicalization convention: the vantage point's local address set
// determines which side of a captured packet is "forward". A flow's
// canonical [FiveTuple] always expresses the connection from the local
// vantage point's perspective (local port as SrcPort, peer as
// DstAddr/DstPort), exactly like the source port and destination address
// a connector worker observes when it opens the same connection. This is
// what lets the merger join active and flow records on plain equality
// without knowing anything about which physical NIC a packet arrived on.
package flow

import (
	"net/netip"
	"time"
)

// FiveTuple is a canonical flow identity, expressed from the local vantage
// point's perspective.
type FiveTuple struct {
	Protocol string
	DstAddr  netip.Addr
	DstPort  uint16
	SrcPort  uint16
}

// Record accumulates per-flow state as packets arrive. Analyzer chains
// (package analyzer) own sub-structs embedded here; the observer composes
// them by containment.
type Record struct {
	Tuple FiveTuple

	// SrcAddr is the local address of this flow, kept separately from the
	// join key because it is informative but not required for matching.
	SrcAddr netip.Addr

	// First and Last are the timestamps of the first and most recently
	// processed packet belonging to this flow.
	First time.Time
	Last  time.Time

	// Packets and Bytes are cumulative per-direction counters, indexed by
	// [DirFwd] and [DirRev].
	Packets [2]uint64
	Bytes   [2]uint64

	// Basic holds fields set by the always-installed basic chain.
	Basic BasicFields

	// TCP holds fields set by the TCP chain, nil if that chain was not
	// installed for this run.
	TCP *TCPFields

	// ECN holds fields set by the ECN chain, nil if not installed.
	ECN *ECNFields

	// TFO holds fields set by the TFO chain, nil if not installed.
	TFO *TFOFields

	// done is not set or read anywhere. Double emission is prevented by
	// the table instead: Emit, Sweep and DrainAll each remove a record
	// from the table before returning it.
	done bool
}

// BasicFields are set by the always-installed basic chain: byte/packet
// counters and protocol, already promoted to top-level Record fields, plus
// whether this flow has been vetoed by the new-flow chain (not kept in the
// table at all, so Vetoed is informational for callers constructing a
// Record directly in tests).
type BasicFields struct {
	Vetoed bool
}

// Direction indexes the per-direction arrays on [Record].
type Direction int

const (
	// DirFwd is the direction outbound from the local vantage point.
	DirFwd Direction = 0
	// DirRev is the direction inbound to the local vantage point.
	DirRev Direction = 1
)

// TCPSynFlags is a bitmask of the flags observed on a direction's SYN
// packet, used by plugins to decide whether a feature negotiated, was
// reflected by a middlebox, or was stripped. The SAE/SAEC/SEC composites
// are the handshake shapes plugin condition-tag logic (e.g.
// ecn.negotiation.*) compares against.
type TCPSynFlags uint8

const (
	TCPSyn  TCPSynFlags = 1 << 0 // SYN
	TCPAck  TCPSynFlags = 1 << 1 // ACK
	TCPEce  TCPSynFlags = 1 << 2 // ECN-Echo
	TCPCwr  TCPSynFlags = 1 << 3 // Congestion Window Reduced
	TCPSae  TCPSynFlags = TCPSyn | TCPAck | TCPEce        // SYN,ACK,ECE
	TCPSaec TCPSynFlags = TCPSyn | TCPAck | TCPEce | TCPCwr // SYN,ACK,ECE,CWR
	TCPSec  TCPSynFlags = TCPSyn | TCPEce | TCPCwr        // SYN,ECE,CWR (our outbound SYN)
)

// TCPFields is set by the TCP chain (package analyzer).
type TCPFields struct {
	// SynFlags holds the flags seen on each direction's SYN packet.
	SynFlags [2]TCPSynFlags

	// Connected is true once a SYN has been seen in both directions.
	Connected bool

	// Fin and Rst record which directions sent a FIN or RST.
	Fin [2]bool
	Rst [2]bool
}

// Complete reports whether the flow should be emitted because both
// directions have sent a FIN, or either direction has sent a RST.
func (f *TCPFields) Complete() bool {
	if f == nil {
		return false
	}
	if f.Rst[DirFwd] || f.Rst[DirRev] {
		return true
	}
	return f.Fin[DirFwd] && f.Fin[DirRev]
}

// ECNFields is set by the ECN chain (package analyzer): whether each ECN
// IP-header codepoint was observed on the SYN and on a data packet, in
// each direction.
type ECNFields struct {
	Ect0Syn  [2]bool
	Ect1Syn  [2]bool
	CeSyn    [2]bool
	Ect0Data [2]bool
	Ect1Data [2]bool
	CeData   [2]bool
}

// TFOFields is set by the TFO chain (package analyzer).
type TFOFields struct {
	// SynKind and AckKind are the TCP option kind that carried the Fast
	// Open cookie on the SYN and SYN+ACK respectively (0 if none).
	SynKind int
	AckKind int

	// SynCookieLen and AckCookieLen are the cookie lengths observed.
	SynCookieLen int
	AckCookieLen int

	// Seq is the SYN sequence number, Dlen the SYN payload length, Ack the
	// SYN+ACK acknowledgment number.
	Seq  uint32
	Dlen int
	Ack  uint32
}
