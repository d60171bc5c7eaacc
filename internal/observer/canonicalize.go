// SPDX-License-Identifier: GPL-3.0-or-later

package observer

import (
	"net/netip"

	"github.com/bassosimone/pathspider/internal/flow"
	"github.com/bassosimone/pathspider/internal/packetsource"
)

// canonicalize derives a packet's canonical 5-tuple and direction from the
// vantage point's local address set, per the convention documented on
// [flow.FiveTuple]: a packet whose source is local is forward traffic; a
// packet whose destination is local is reverse traffic. Packets matching
// neither (captured on a path segment not touching the vantage point) are
// treated as forward, since no better convention applies.
func canonicalize(pkt packetsource.Packet, local LocalAddrSet) (tuple flow.FiveTuple, dir flow.Direction, srcAddr netip.Addr) {
	var srcPort, dstPort uint16
	if pkt.TCP != nil {
		srcPort = pkt.TCP.SrcPort
		dstPort = pkt.TCP.DstPort
	}

	if local.Contains(pkt.DstAddr) && !local.Contains(pkt.SrcAddr) {
		return flow.FiveTuple{
			Protocol: pkt.Protocol,
			DstAddr:  pkt.SrcAddr,
			DstPort:  srcPort,
			SrcPort:  dstPort,
		}, flow.DirRev, pkt.DstAddr
	}

	return flow.FiveTuple{
		Protocol: pkt.Protocol,
		DstAddr:  pkt.DstAddr,
		DstPort:  dstPort,
		SrcPort:  srcPort,
	}, flow.DirFwd, pkt.SrcAddr
}
