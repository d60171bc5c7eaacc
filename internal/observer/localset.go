// SPDX-License-Identifier: GPL-3.0-or-later

package observer

import "net/netip"

// LocalAddrSet is the local vantage point's address set, used to decide
// which side of a captured packet is "forward": this package adopts the
// convention that forward is outbound from one of these addresses,
// documented alongside [flow.FiveTuple].
type LocalAddrSet map[netip.Addr]bool

// NewLocalAddrSet returns a [LocalAddrSet] containing addrs.
func NewLocalAddrSet(addrs ...netip.Addr) LocalAddrSet {
	set := make(LocalAddrSet, len(addrs))
	for _, a := range addrs {
		set[a] = true
	}
	return set
}

// Contains reports whether addr is one of the vantage point's addresses.
func (s LocalAddrSet) Contains(addr netip.Addr) bool {
	return s[addr]
}
