// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !linux

package ecn

import "context"

// enableECN is a no-op on platforms without a tcp_ecn sysctl
// equivalent wired up.
func enableECN(ctx context.Context, c int) error {
	return nil
}
