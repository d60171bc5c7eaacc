// SPDX-License-Identifier: GPL-3.0-or-later

// Package dns implements a plugin that compares plain DNS-over-UDP
// against two encrypted DNS transports (DNS-over-TLS and
// DNS-over-HTTPS). Configuration 0 resolves the job's domain over UDP on
// port 53; configuration 1 resolves it over DNS-over-TLS on port 853;
// configuration 2 resolves it over DNS-over-HTTPS on port 443. All three
// hit the same server address, and the verdict reports whether a path
// element is tampering with plain DNS answers by comparing the encrypted
// transports' A records pairwise against the UDP baseline.
package dns

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"time"

	"github.com/bassosimone/dnscodec"
	"github.com/bassosimone/nop"
	"github.com/bassosimone/pathspider/internal/analyzer"
	"github.com/bassosimone/pathspider/internal/job"
	"github.com/bassosimone/pathspider/internal/merger"
	"github.com/bassosimone/pathspider/internal/plugin"
	"github.com/bassosimone/pathspider/internal/record"
	"github.com/bassosimone/pathspider/internal/worker"
	miekgdns "github.com/miekg/dns"
)

// Configuration indices.
const (
	ConfigUDP = 0
	ConfigTLS = 1
	ConfigDoH = 2
)

const (
	portUDP = 53
	portTLS = 853
	portDoH = 443
)

// NewDescriptor returns the dns plugin's [*plugin.Descriptor]. None of
// the three transports requires a global state transition between rounds, so the
// plugin runs desynchronized like h2 and tfo.
func NewDescriptor() *plugin.Descriptor {
	return &plugin.Descriptor{
		Name:        "dns",
		Description: "compares DNS-over-UDP against DNS-over-TLS answers for the same name",
		Mode:        plugin.ModeDesynchronized,
		NewConnectors: func(cfg *nop.Config, logger nop.SLogger, timeout time.Duration) worker.Connectors {
			return worker.Connectors{
				&udpConnector{cfg: cfg, logger: logger, timeout: timeout},
				&tlsConnector{cfg: cfg, logger: logger, timeout: timeout},
				&dohConnector{cfg: cfg, logger: logger, timeout: timeout},
			}
		},
		Chains: analyzer.Chains{
			analyzer.NewBasicChain("udp", "tcp"),
		},
		Combine: combine,
	}
}

// udpConnector performs a DNS-over-UDP exchange.
type udpConnector struct {
	cfg     *nop.Config
	logger  nop.SLogger
	timeout time.Duration
}

func (c *udpConnector) Connect(ctx context.Context, req job.Request, addr netip.AddrPort) record.Active {
	started := time.Now()
	target := netip.AddrPortFrom(addr.Addr(), portUDP)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pipe := nop.Compose5(
		nop.NewEndpointFunc(target),
		nop.NewConnectFunc(c.cfg, "udp", c.logger),
		nop.NewObserveConnFunc(c.cfg, c.logger),
		nop.NewCancelWatchFunc(),
		nop.NewDNSOverUDPConnFunc(c.cfg, c.logger),
	)
	conn, err := pipe.Call(ctx, nop.Unit{})
	if err != nil {
		return failed(req, target, started, c.cfg.ErrClassifier, err)
	}
	defer conn.Close()

	resp, err := conn.Exchange(ctx, dnscodec.NewQuery(req.Job.Domain, miekgdns.TypeA))
	return finish(req, target, started, c.cfg.ErrClassifier, resp, err)
}

// tlsConnector performs a DNS-over-TLS exchange.
type tlsConnector struct {
	cfg     *nop.Config
	logger  nop.SLogger
	timeout time.Duration
}

func (c *tlsConnector) Connect(ctx context.Context, req job.Request, addr netip.AddrPort) record.Active {
	started := time.Now()
	target := netip.AddrPortFrom(addr.Addr(), portTLS)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sni := req.Job.Tags["dns_sni"]
	pipe := nop.Compose6(
		nop.NewEndpointFunc(target),
		nop.NewConnectFunc(c.cfg, "tcp", c.logger),
		nop.NewObserveConnFunc(c.cfg, c.logger),
		nop.NewCancelWatchFunc(),
		nop.NewTLSHandshakeFunc(c.cfg, &tls.Config{ServerName: sni, NextProtos: []string{"dot"}}, c.logger),
		nop.NewDNSOverTLSConnFunc(c.cfg, c.logger),
	)
	conn, err := pipe.Call(ctx, nop.Unit{})
	if err != nil {
		return failed(req, target, started, c.cfg.ErrClassifier, err)
	}
	defer conn.Close()

	resp, err := conn.Exchange(ctx, dnscodec.NewQuery(req.Job.Domain, miekgdns.TypeA))
	return finish(req, target, started, c.cfg.ErrClassifier, resp, err)
}

// dohConnector performs a DNS-over-HTTPS exchange against the same server
// address, using the SNI tag for both the TLS ServerName and the request's
// Host so a CDN-fronted resolver still routes to the right endpoint.
type dohConnector struct {
	cfg     *nop.Config
	logger  nop.SLogger
	timeout time.Duration
}

func (c *dohConnector) Connect(ctx context.Context, req job.Request, addr netip.AddrPort) record.Active {
	started := time.Now()
	target := netip.AddrPortFrom(addr.Addr(), portDoH)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sni := req.Job.Tags["dns_sni"]
	url := fmt.Sprintf("https://%s/dns-query", sni)
	pipe := nop.Compose7(
		nop.NewEndpointFunc(target),
		nop.NewConnectFunc(c.cfg, "tcp", c.logger),
		nop.NewObserveConnFunc(c.cfg, c.logger),
		nop.NewCancelWatchFunc(),
		nop.NewTLSHandshakeFunc(c.cfg, &tls.Config{ServerName: sni, NextProtos: []string{"h2", "http/1.1"}}, c.logger),
		nop.NewHTTPConnFuncTLS(c.cfg, c.logger),
		nop.NewDNSOverHTTPSConnFunc(c.cfg, url, c.logger),
	)
	conn, err := pipe.Call(ctx, nop.Unit{})
	if err != nil {
		return failed(req, target, started, c.cfg.ErrClassifier, err)
	}
	defer conn.Close()

	resp, err := conn.Exchange(ctx, dnscodec.NewQuery(req.Job.Domain, miekgdns.TypeA))
	return finish(req, target, started, c.cfg.ErrClassifier, resp, err)
}

func failed(req job.Request, addr netip.AddrPort, started time.Time, classifier nop.ErrClassifier, err error) record.Active {
	finished := time.Now()
	state := record.StateFailed
	if errors.Is(err, context.DeadlineExceeded) {
		state = record.StateTimeout
	}
	return record.Active{
		JobID: req.Job.ID, Config: req.Config, RemoteAddr: addr,
		State: state, Started: started, Finished: finished,
		ErrClass: classifier.Classify(err),
	}
}

func finish(req job.Request, addr netip.AddrPort, started time.Time, classifier nop.ErrClassifier, resp *dnscodec.Response, err error) record.Active {
	finished := time.Now()
	if err != nil {
		return failed(req, addr, started, classifier, err)
	}
	records, _ := resp.RecordsA()
	slices.Sort(records)
	fields := map[string]any{"dns_a_records": records}
	return record.Active{
		JobID: req.Job.ID, Config: req.Config, RemoteAddr: addr,
		State: record.StateOK, Started: started, Finished: finished,
		Fields: fields,
	}
}

// combine implements the verdict function: connectivity against the UDP
// baseline first, then a consistency tag per encrypted transport comparing
// its sorted A records against the baseline's.
func combine(slots []merger.Slot) []string {
	udp, dot, doh := slots[ConfigUDP], slots[ConfigTLS], slots[ConfigDoH]
	tags := []string{merger.CombineConnectivity(merger.StateOK(udp), merger.StateOK(dot))}

	udpRecords, _ := udp.Active.Fields["dns_a_records"].([]string)

	if merger.StateOK(udp) && merger.StateOK(dot) {
		dotRecords, _ := dot.Active.Fields["dns_a_records"].([]string)
		if slices.Equal(udpRecords, dotRecords) {
			tags = append(tags, "dns.tls.consistent")
		} else {
			tags = append(tags, "dns.tls.diverges")
		}
	}

	if merger.StateOK(udp) && merger.StateOK(doh) {
		dohRecords, _ := doh.Active.Fields["dns_a_records"].([]string)
		if slices.Equal(udpRecords, dohRecords) {
			tags = append(tags, "dns.https.consistent")
		} else {
			tags = append(tags, "dns.https.diverges")
		}
	}

	return tags
}
