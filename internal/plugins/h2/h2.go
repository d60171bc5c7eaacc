// SPDX-License-Identifier: GPL-3.0-or-later

// Package h2 implements the built-in HTTP/2 plugin: configuration 0
// performs a plain HTTPS GET offering only
// HTTP/1.1, configuration 1 performs the same GET while forcing H2 first
// in the ALPN offer; the verdict reports whether the server actually
// negotiated HTTP/2 in the feature-enabled configuration.
package h2

import (
	"time"

	"github.com/bassosimone/nop"
	"github.com/bassosimone/pathspider/internal/analyzer"
	"github.com/bassosimone/pathspider/internal/connector"
	"github.com/bassosimone/pathspider/internal/merger"
	"github.com/bassosimone/pathspider/internal/plugin"
	"github.com/bassosimone/pathspider/internal/worker"
)

// Configuration indices.
const (
	ConfigNoH2 = 0
	ConfigH2   = 1
)

// NewDescriptor returns the h2 plugin's [*plugin.Descriptor]. No global
// configuration state is touched between rounds: the ALPN offer is a
// per-connection client option, so the plugin runs desynchronized.
func NewDescriptor() *plugin.Descriptor {
	return &plugin.Descriptor{
		Name:        "h2",
		Description: "compares a plain HTTPS GET against one forcing HTTP/2 via ALPN",
		Mode:        plugin.ModeDesynchronized,
		NewConnectors: func(cfg *nop.Config, logger nop.SLogger, timeout time.Duration) worker.Connectors {
			return worker.Connectors{
				connector.NewHTTP(cfg, logger, timeout, true, []string{"http/1.1"}),
				connector.NewHTTP(cfg, logger, timeout, true, []string{"h2", "http/1.1"}),
			}
		},
		Chains: analyzer.Chains{
			analyzer.NewBasicChain("tcp"),
			analyzer.TCPChain{},
		},
		Combine: combine,
	}
}

// combine implements the verdict function: connectivity first, then an
// upgrade tag derived from the feature configuration's negotiated
// protocol, surfaced on the active record as http_proto.
func combine(slots []merger.Slot) []string {
	baseline, test := slots[ConfigNoH2], slots[ConfigH2]
	tags := []string{merger.CombineConnectivity(merger.StateOK(baseline), merger.StateOK(test))}

	if !merger.StateOK(test) {
		return tags
	}
	proto, _ := test.Active.Fields["http_proto"].(string)
	if proto == "HTTP/2.0" {
		tags = append(tags, "h2.upgrade.success")
	} else {
		tags = append(tags, "h2.upgrade.failed")
	}
	return tags
}
