// SPDX-License-Identifier: GPL-3.0-or-later

package analyzer

import (
	"github.com/bassosimone/pathspider/internal/flow"
	"github.com/bassosimone/pathspider/internal/packetsource"
)

// ECNChain observes the IP ECT0/ECT1/CE codepoints on SYN packets and on
// data packets, per direction.
type ECNChain struct{}

var _ Chain = ECNChain{}

// Name implements [Chain].
func (ECNChain) Name() string { return "ecn" }

// NewFlow implements [Chain].
func (ECNChain) NewFlow(rec *flow.Record, pkt packetsource.Packet) bool {
	rec.ECN = &flow.ECNFields{}
	return true
}

// Packet implements [Chain].
func (ECNChain) Packet(rec *flow.Record, pkt packetsource.Packet, dir flow.Direction) bool {
	isSyn := pkt.TCP != nil && pkt.TCP.Flags.Has(packetsource.TCPSyn)
	isData := pkt.TCP != nil && pkt.TCP.PayloadLen > 0

	switch pkt.ECNCodepoint {
	case packetsource.ECNECT0:
		if isSyn {
			rec.ECN.Ect0Syn[dir] = true
		}
		if isData {
			rec.ECN.Ect0Data[dir] = true
		}
	case packetsource.ECNECT1:
		if isSyn {
			rec.ECN.Ect1Syn[dir] = true
		}
		if isData {
			rec.ECN.Ect1Data[dir] = true
		}
	case packetsource.ECNCE:
		if isSyn {
			rec.ECN.CeSyn[dir] = true
		}
		if isData {
			rec.ECN.CeData[dir] = true
		}
	}
	return true
}
