// SPDX-License-Identifier: GPL-3.0-or-later

// Package tfo implements the built-in TCP Fast Open plugin:
// configuration 0 is a plain TCP connect with Fast Open not requested,
// establishing whether
// the path can complete a handshake at all; configuration 1 sends a
// priming SYN with an application payload to obtain a server cookie,
// discards it, then repeats the send expecting the cached cookie to let
// the path accept SYN-data. A baseline failure propagates as SKIPPED on
// configuration 1 via the job's scratch map, so the cookie attempt is
// never charged against a host already known unreachable.
package tfo

import (
	"time"

	"github.com/bassosimone/nop"
	"github.com/bassosimone/pathspider/internal/analyzer"
	"github.com/bassosimone/pathspider/internal/connector"
	"github.com/bassosimone/pathspider/internal/merger"
	"github.com/bassosimone/pathspider/internal/plugin"
	"github.com/bassosimone/pathspider/internal/record"
	"github.com/bassosimone/pathspider/internal/worker"
)

// Configuration indices.
const (
	ConfigBaseline = 0 // plain connect, no Fast Open
	ConfigReuse    = 1 // primes then replays a cookie, expecting SYN-data acceptance
)

// NewDescriptor returns the tfo plugin's [*plugin.Descriptor]. Fast Open
// is opted into per-connection via the TCP_FASTOPEN_CONNECT socket option
// (internal/connector's tfo_linux.go/tfo_other.go), so the plugin runs
// desynchronized.
func NewDescriptor() *plugin.Descriptor {
	return &plugin.Descriptor{
		Name:        "tfo",
		Description: "compares a plain TCP baseline against a Fast Open cookie-priming/cookie-reuse pair",
		Mode:        plugin.ModeDesynchronized,
		NewConnectors: func(cfg *nop.Config, logger nop.SLogger, timeout time.Duration) worker.Connectors {
			return worker.Connectors{
				connector.NewTFO(cfg, logger, timeout),
				connector.NewTFO(cfg, logger, timeout),
			}
		},
		Chains: analyzer.Chains{
			analyzer.NewBasicChain("tcp"),
			analyzer.TCPChain{},
			analyzer.TFOChain{},
		},
		Combine: combine,
	}
}

// combine implements the verdict function. Skip propagation
// short-circuits before any flow inspection: a
// SKIPPED configuration-1 record means the baseline never connected, so
// there is nothing to say about cookie reuse. The baseline's own flow
// carries no TFO fields (it never requests Fast Open), so every
// TFO-specific tag is read off the reuse configuration's flow: its SYN
// carries the cookie-reuse attempt, and its SYN+ACK tells us whether the
// path accepted the data that rode along with it.
func combine(slots []merger.Slot) []string {
	baseline, reuse := slots[ConfigBaseline], slots[ConfigReuse]

	if reuse.Active.State == record.StateSkipped {
		return []string{"connectivity.offline", "tfo.skipped"}
	}

	tags := []string{merger.CombineConnectivity(merger.StateOK(baseline), merger.StateOK(reuse))}

	if reuse.Flow == nil || reuse.Flow.TFO == nil || reuse.Flow.TFO.SynKind == 0 {
		tags = append(tags, "tfo.cookie.not_received")
		return tags
	}
	tags = append(tags, "tfo.cookie.received")

	if reuse.Flow.TFO.Dlen > 0 && reuse.Flow.TCP != nil && reuse.Flow.TCP.Connected {
		tags = append(tags, "tfo.data.accepted")
	} else {
		tags = append(tags, "tfo.data.rejected")
	}
	return tags
}
