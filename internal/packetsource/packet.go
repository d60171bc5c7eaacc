// SPDX-License-Identifier: GPL-3.0-or-later

// Package packetsource defines the typed packet record the observer
// consumes, the opaque source contract a trace URI resolves to, and a
// concrete gopacket/pcap-backed implementation of that contract.
package packetsource

import (
	"net/netip"
	"time"
)

// ECN is the two-bit ECN codepoint carried in the IP header, using the
// RFC 3168 bit values directly so chain code can compare against the wire
// representation without a lookup table.
type ECN uint8

const (
	ECNNotECT ECN = 0b00
	ECNECT1   ECN = 0b01
	ECNECT0   ECN = 0b10
	ECNCE     ECN = 0b11
)

// TCPFlags is a bitmask of the flags set on a TCP segment.
type TCPFlags uint8

const (
	TCPFin TCPFlags = 1 << 0
	TCPSyn TCPFlags = 1 << 1
	TCPRst TCPFlags = 1 << 2
	TCPPsh TCPFlags = 1 << 3
	TCPAck TCPFlags = 1 << 4
	TCPUrg TCPFlags = 1 << 5
	TCPEce TCPFlags = 1 << 6
	TCPCwr TCPFlags = 1 << 7
)

// Has reports whether all bits in want are set.
func (f TCPFlags) Has(want TCPFlags) bool { return f&want == want }

// TCPHeader is the parsed TCP header of a packet, including the raw
// options bytes.
type TCPHeader struct {
	SrcPort    uint16
	DstPort    uint16
	Seq        uint32
	Ack        uint32
	DataOffset uint8 // header length in 32-bit words, as carried on the wire
	Flags      TCPFlags
	// Options is the TCP option bytes in wire encoding. The pcap source
	// rebuilds them from gopacket's decoded options and stops after the
	// first end-of-list option, so padding after it is not included and
	// the length can be less than DataOffset*4-20.
	Options []byte
	// PayloadLen is the number of bytes of TCP payload following the header.
	PayloadLen int
}

// Packet is one packet yielded by a [Source], with IP/TCP headers
// already parsed.
type Packet struct {
	Timestamp time.Time

	// Protocol is "tcp", "udp", or another IANA protocol name; analyzer
	// chains other than the basic chain only look at "tcp".
	Protocol string

	SrcAddr netip.Addr
	DstAddr netip.Addr

	// ECNCodepoint is the two ECN bits from the IP header (IPv4 ToS or
	// IPv6 traffic class), valid regardless of Protocol.
	ECNCodepoint ECN

	// TCP is non-nil iff Protocol == "tcp".
	TCP *TCPHeader
}
