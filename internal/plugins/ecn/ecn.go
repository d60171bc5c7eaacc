// SPDX-License-Identifier: GPL-3.0-or-later

// Package ecn implements the built-in ECN plugin: configuration 0 is
// the baseline, configuration 1
// globally enables Explicit Congestion Notification via a synchronized
// sysctl write, and the verdict compares the SYN/SYN-ACK flags and
// IP-header codepoints the observer captured against what a clean
// negotiation, a reflecting middlebox, or an ECN-stripping path would
// produce.
package ecn

import (
	"time"

	"github.com/bassosimone/nop"
	"github.com/bassosimone/pathspider/internal/analyzer"
	"github.com/bassosimone/pathspider/internal/configurator"
	"github.com/bassosimone/pathspider/internal/connector"
	"github.com/bassosimone/pathspider/internal/flow"
	"github.com/bassosimone/pathspider/internal/merger"
	"github.com/bassosimone/pathspider/internal/plugin"
	"github.com/bassosimone/pathspider/internal/worker"
)

// Configuration indices.
const (
	ConfigBaseline = 0
	ConfigECN      = 1
)

// NewDescriptor returns the ecn plugin's [*plugin.Descriptor].
func NewDescriptor() *plugin.Descriptor {
	return &plugin.Descriptor{
		Name:        "ecn",
		Description: "compares a baseline TCP handshake against one with ECN requested",
		Mode:        plugin.ModeSynchronized,
		Prepare: func(c int) configurator.PrepareFunc {
			if c == ConfigECN {
				return enableECN
			}
			return nil
		},
		NewConnectors: func(cfg *nop.Config, logger nop.SLogger, timeout time.Duration) worker.Connectors {
			return worker.Connectors{
				connector.NewTCP(cfg, logger, timeout),
				connector.NewTCP(cfg, logger, timeout),
			}
		},
		Chains: analyzer.Chains{
			analyzer.NewBasicChain("tcp"),
			analyzer.TCPChain{},
			analyzer.ECNChain{},
		},
		Combine: combine,
	}
}

// combine implements the verdict function: connectivity first, then
// negotiation/reflection from the SYN-ACK's echoed bits, then one ipmark
// tag per ECN codepoint (ect0, ect1, ce), seen or not_seen, on the
// feature-enabled configuration's data packets. The whole negotiation/ipmark block is
// gated on the feature flow being observed with a completed handshake; a
// flow that was captured but never connected gets no such tags at all,
// the same way internal/plugins/tfo checks TCP.Connected before
// reporting on data acceptance.
func combine(slots []merger.Slot) []string {
	baseline, test := slots[ConfigBaseline], slots[ConfigECN]
	tags := []string{merger.CombineConnectivity(merger.StateOK(baseline), merger.StateOK(test))}

	if test.Flow == nil || test.Flow.TCP == nil || !test.Flow.TCP.Connected {
		return tags
	}
	rev := test.Flow.TCP.SynFlags[flow.DirRev]
	switch {
	case rev&flow.TCPSaec == flow.TCPSae:
		tags = append(tags, "ecn.negotiation.succeeded")
	case rev&flow.TCPSaec == flow.TCPSaec:
		tags = append(tags, "ecn.negotiation.reflected")
	case rev != 0:
		tags = append(tags, "ecn.negotiation.failed")
	}

	if test.Flow.ECN != nil {
		tags = append(tags, ipmarkTag("ect0", anyDirection(test.Flow.ECN.Ect0Data)))
		tags = append(tags, ipmarkTag("ect1", anyDirection(test.Flow.ECN.Ect1Data)))
		tags = append(tags, ipmarkTag("ce", anyDirection(test.Flow.ECN.CeData)))
	}
	return tags
}

func anyDirection(pair [2]bool) bool {
	return pair[flow.DirFwd] || pair[flow.DirRev]
}

func ipmarkTag(codepoint string, seen bool) string {
	if seen {
		return "ecn.ipmark." + codepoint + ".seen"
	}
	return "ecn.ipmark." + codepoint + ".not_seen"
}
