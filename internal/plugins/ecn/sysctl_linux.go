// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux

package ecn

import (
	"context"
	"fmt"
	"os"
)

// ecnSysctl is the Linux knob toggled between configurations: 0 disables
// ECN, 1 makes the kernel request it on outgoing connections, 2 only
// negotiates it when the peer requests it first.
const ecnSysctl = "/proc/sys/net/ipv4/tcp_ecn"

// enableECN writes the sysctl that makes the kernel request ECN on
// outgoing SYNs.
func enableECN(ctx context.Context, c int) error {
	if err := os.WriteFile(ecnSysctl, []byte("1\n"), 0o644); err != nil {
		return fmt.Errorf("ecn: writing %s: %w", ecnSysctl, err)
	}
	return nil
}
