// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux

package connector

import (
	"context"
	"net"
	"net/netip"
	"os"

	"golang.org/x/sys/unix"
)

// tfoDial opens a TCP socket with TCP_FASTOPEN_CONNECT set (Linux
// 4.11+), connects, and writes payload. With this socket option, connect
// returns immediately and the kernel defers the SYN until the first
// Write, attaching the application payload and any cached Fast Open
// cookie for this peer automatically — no explicit cookie plumbing is
// needed at the application level.
func tfoDial(ctx context.Context, addr netip.AddrPort, payload []byte) (uint16, error) {
	domain := unix.AF_INET
	if addr.Addr().Is6() {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return 0, err
	}
	defer func() {
		if fd >= 0 {
			unix.Close(fd)
		}
	}()

	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_FASTOPEN_CONNECT, 1); err != nil {
		return 0, err
	}

	sa := sockaddrFor(addr)
	if deadline, ok := ctx.Deadline(); ok {
		_ = deadline // not applied to connect; the deadline is set on conn after handoff below
	}
	if err := unix.Connect(fd, sa); err != nil {
		return 0, err
	}

	f := os.NewFile(uintptr(fd), "tfo")
	fd = -1 // ownership transferred to f
	conn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	if len(payload) > 0 {
		if _, err := conn.Write(payload); err != nil {
			return sourcePort(conn), err
		}
	}
	return sourcePort(conn), nil
}

func sockaddrFor(addr netip.AddrPort) unix.Sockaddr {
	if addr.Addr().Is4() {
		return &unix.SockaddrInet4{Port: int(addr.Port()), Addr: addr.Addr().As4()}
	}
	return &unix.SockaddrInet6{Port: int(addr.Port()), Addr: addr.Addr().As16()}
}
