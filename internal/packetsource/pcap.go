// SPDX-License-Identifier: GPL-3.0-or-later

package packetsource

import (
	"context"
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// pcapSource adapts a *pcap.Handle to the [Source] contract.
type pcapSource struct {
	handle *pcap.Handle
}

func newPcapFileSource(file string) (Source, error) {
	handle, err := pcap.OpenOffline(file)
	if err != nil {
		return nil, errBroken(err)
	}
	return &pcapSource{handle: handle}, nil
}

func newPcapLiveSource(iface string) (Source, error) {
	handle, err := pcap.OpenLive(iface, 65536, true, pcap.BlockForever)
	if err != nil {
		return nil, errBroken(err)
	}
	return &pcapSource{handle: handle}, nil
}

// Next implements [Source].
func (s *pcapSource) Next(ctx context.Context) (Packet, error) {
	for {
		select {
		case <-ctx.Done():
			return Packet{}, ctx.Err()
		default:
		}
		data, ci, err := s.handle.ZeroCopyReadPacketData()
		if err != nil {
			return Packet{}, errBroken(err)
		}
		pkt, ok := decode(data, ci.Timestamp)
		if !ok {
			// Not an IPv4/IPv6 packet we can parse; skip to the next one.
			continue
		}
		return pkt, nil
	}
}

// Close implements [Source].
func (s *pcapSource) Close() error {
	s.handle.Close()
	return nil
}

// decode parses the Ethernet/IPv4-or-IPv6/TCP-or-UDP layers of a captured
// frame into a [Packet]. It returns ok=false for anything it cannot
// classify as an IP packet (ARP, non-IP L3, truncated capture, ...).
func decode(data []byte, ts time.Time) (Packet, bool) {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.DecodeOptions{
		Lazy:   true,
		NoCopy: true,
	})

	var (
		srcAddr, dstAddr netip.Addr
		ecn              ECN
		haveIP           bool
	)

	if v4 := packet.Layer(layers.LayerTypeIPv4); v4 != nil {
		ip := v4.(*layers.IPv4)
		srcAddr, _ = netip.AddrFromSlice(ip.SrcIP.To4())
		dstAddr, _ = netip.AddrFromSlice(ip.DstIP.To4())
		ecn = ECN(ip.TOS & 0x03)
		haveIP = true
	} else if v6 := packet.Layer(layers.LayerTypeIPv6); v6 != nil {
		ip := v6.(*layers.IPv6)
		srcAddr, _ = netip.AddrFromSlice(ip.SrcIP.To16())
		dstAddr, _ = netip.AddrFromSlice(ip.DstIP.To16())
		ecn = ECN(ip.TrafficClass & 0x03)
		haveIP = true
	}
	if !haveIP {
		return Packet{}, false
	}

	out := Packet{
		Timestamp:    ts,
		SrcAddr:      srcAddr,
		DstAddr:      dstAddr,
		ECNCodepoint: ecn,
	}

	if tcpLayer := packet.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		tcp := tcpLayer.(*layers.TCP)
		var flags TCPFlags
		if tcp.FIN {
			flags |= TCPFin
		}
		if tcp.SYN {
			flags |= TCPSyn
		}
		if tcp.RST {
			flags |= TCPRst
		}
		if tcp.PSH {
			flags |= TCPPsh
		}
		if tcp.ACK {
			flags |= TCPAck
		}
		if tcp.URG {
			flags |= TCPUrg
		}
		if tcp.ECE {
			flags |= TCPEce
		}
		if tcp.CWR {
			flags |= TCPCwr
		}
		out.Protocol = "tcp"
		out.TCP = &TCPHeader{
			SrcPort:    uint16(tcp.SrcPort),
			DstPort:    uint16(tcp.DstPort),
			Seq:        tcp.Seq,
			Ack:        tcp.Ack,
			DataOffset: tcp.DataOffset,
			Flags:      flags,
			Options:    tcpOptionBytes(tcp),
			PayloadLen: len(tcp.Payload),
		}
		return out, true
	}

	if udpLayer := packet.Layer(layers.LayerTypeUDP); udpLayer != nil {
		out.Protocol = "udp"
		return out, true
	}

	return Packet{}, false
}

// tcpOptionBytes reconstructs the raw option bytes gopacket already parsed
// into layers.TCPOption values, so the analyzer's own bit-exact parser
// (package analyzer) operates on the same wire representation regardless
// of whether the packet arrived via gopacket or a synthetic test source.
func tcpOptionBytes(tcp *layers.TCP) []byte {
	var out []byte
	for _, opt := range tcp.Options {
		kind := byte(opt.OptionType)
		switch kind {
		case 0: // end of option list
			out = append(out, 0)
			return out
		case 1: // no-op
			out = append(out, 1)
		default:
			out = append(out, kind, byte(opt.OptionLength))
			out = append(out, opt.OptionData...)
		}
	}
	return out
}
