// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bassosimone/nop"
	"github.com/bassosimone/pathspider"
	"github.com/bassosimone/pathspider/internal/packetsource"
	"github.com/bassosimone/pathspider/internal/plugin"
	"github.com/bassosimone/pathspider/internal/plugins/dns"
	"github.com/bassosimone/pathspider/internal/plugins/ecn"
	"github.com/bassosimone/pathspider/internal/plugins/h2"
	"github.com/bassosimone/pathspider/internal/plugins/tfo"
)

// builtinPlugins is the compile-time registry of runnable plugins.
func builtinPlugins() plugin.Registry {
	return plugin.NewRegistry(
		ecn.NewDescriptor(),
		h2.NewDescriptor(),
		tfo.NewDescriptor(),
		dns.NewDescriptor(),
	)
}

var measureFlags struct {
	pluginName string
	workers    int
	input      string
	output     string
	timeout    time.Duration
	iface      string
}

func newMeasureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "measure",
		Short: "Run one measurement against a target list",
		Long: `measure reads newline-delimited targets, drives paired probes
through the selected plugin's connectors, observes the resulting packets
on the wire, and writes one newline-delimited verdict per target.`,
		RunE: runMeasure,
	}
	flags := cmd.Flags()
	flags.StringVar(&measureFlags.pluginName, "plugin", "ecn",
		fmt.Sprintf("measurement plugin to run (%v)", builtinPlugins().Names()))
	flags.IntVar(&measureFlags.workers, "workers", 0, "connector worker count (0: built-in default)")
	flags.StringVar(&measureFlags.input, "input", "-", "target input file, or - for stdin")
	flags.StringVar(&measureFlags.output, "output", "-", "verdict output file, or - for stdout")
	flags.DurationVar(&measureFlags.timeout, "timeout", 0, "per-probe timeout (0: built-in default)")
	flags.StringVar(&measureFlags.iface, "interface", "", "packet source URI (pcap:FILE, int:IFACE)")
	return cmd
}

func runMeasure(cmd *cobra.Command, args []string) error {
	registry := builtinPlugins()
	descriptor, ok := registry.Lookup(measureFlags.pluginName)
	if !ok {
		return fmt.Errorf("measure: unknown plugin %q (available: %v)", measureFlags.pluginName, registry.Names())
	}
	if measureFlags.iface == "" {
		return fmt.Errorf("measure: --interface is required")
	}

	in, err := openInput(measureFlags.input)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := openOutput(measureFlags.output)
	if err != nil {
		return err
	}
	defer out.Close()

	source, err := packetsource.Open(measureFlags.iface)
	if err != nil {
		return fmt.Errorf("measure: %w", err)
	}

	locals, err := localAddrs()
	if err != nil {
		source.Close()
		return fmt.Errorf("measure: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	workers := measureFlags.workers
	probeTimeout := measureFlags.timeout

	return pathspider.Run(ctx, pathspider.Config{
		Plugin:       descriptor,
		Input:        in,
		Output:       out,
		Source:       source,
		LocalAddrs:   locals,
		Workers:      workers,
		ProbeTimeout: probeTimeout,
		NetConfig:    nop.NewConfig(),
		Logger:       nop.DefaultSLogger(),
	})
}

// openInput resolves "-" to stdin, otherwise opens a regular file.
func openInput(path string) (*os.File, error) {
	if path == "-" {
		return os.Stdin, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("measure: opening input: %w", err)
	}
	return f, nil
}

// openOutput resolves "-" to stdout, otherwise creates/truncates a file.
func openOutput(path string) (*os.File, error) {
	if path == "-" {
		return os.Stdout, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("measure: opening output: %w", err)
	}
	return f, nil
}

// localAddrs collects every unicast address on every local interface,
// forming the vantage point's local address set.
func localAddrs() ([]netip.Addr, error) {
	ifaceAddrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("enumerating local addresses: %w", err)
	}
	var addrs []netip.Addr
	for _, a := range ifaceAddrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		addr, ok := netip.AddrFromSlice(ipNet.IP)
		if !ok {
			continue
		}
		addrs = append(addrs, addr.Unmap())
	}
	return addrs, nil
}
