// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !linux

package connector

import (
	"context"
	"fmt"
	"net/netip"
	"runtime"
)

// tfoDial reports an error on platforms without a TCP_FASTOPEN_CONNECT
// equivalent wired up; a Fast Open probe on such a platform is FAILED,
// not silently downgraded to a plain connect.
func tfoDial(ctx context.Context, addr netip.AddrPort, payload []byte) (uint16, error) {
	return 0, fmt.Errorf("tfo: unsupported on %s", runtime.GOOS)
}
