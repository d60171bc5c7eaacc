// SPDX-License-Identifier: GPL-3.0-or-later

package connector

import (
	"context"
	"net/netip"
	"time"

	"github.com/bassosimone/nop"
	"github.com/bassosimone/pathspider/internal/job"
	"github.com/bassosimone/pathspider/internal/record"
)

// TCP is the built-in "tcp" connector: open a stream socket, connect,
// record OK/FAILED/TIMEOUT.
type TCP struct {
	cfg     *nop.Config
	logger  nop.SLogger
	timeout time.Duration
}

// NewTCP returns a [*TCP] connector. A zero timeout uses [DefaultTimeout].
func NewTCP(cfg *nop.Config, logger nop.SLogger, timeout time.Duration) *TCP {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = nop.DefaultSLogger()
	}
	return &TCP{cfg: cfg, logger: logger, timeout: timeout}
}

var _ Connector = (*TCP)(nil)

// Connect implements [Connector].
func (c *TCP) Connect(ctx context.Context, req job.Request, addr netip.AddrPort) record.Active {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pipe := nop.Compose3(
		nop.NewEndpointFunc(addr),
		nop.NewConnectFunc(c.cfg, "tcp", c.logger),
		nop.NewCancelWatchFunc(),
	)
	conn, err := pipe.Call(ctx, nop.Unit{})
	finished := time.Now()

	state, errClass := deriveState(err, c.cfg.ErrClassifier)
	port := sourcePort(conn)
	if conn != nil {
		conn.Close()
	}

	return record.Active{
		JobID:      req.Job.ID,
		Config:     req.Config,
		SourcePort: port,
		RemoteAddr: addr,
		State:      state,
		Started:    started,
		Finished:   finished,
		ErrClass:   errClass,
	}
}
