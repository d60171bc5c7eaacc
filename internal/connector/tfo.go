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

// TFO is the built-in "tfo" connector. Configuration 0 is a plain TCP
// connect with Fast Open not requested, establishing a genuine non-TFO
// baseline; configuration 1 performs the two Fast Open sub-steps in a
// single probe: a priming send that requests a server cookie
// (discarded), followed by a second send that should replay the cached
// cookie and is the attempt actually reported.
type TFO struct {
	cfg     *nop.Config
	logger  nop.SLogger
	timeout time.Duration

	// dial is overridable in tests; the platform-specific implementation
	// lives in tfo_linux.go / tfo_other.go.
	dial func(ctx context.Context, addr netip.AddrPort, payload []byte) (localPort uint16, err error)
}

// NewTFO returns a [*TFO] connector. A zero timeout uses [DefaultTimeout].
func NewTFO(cfg *nop.Config, logger nop.SLogger, timeout time.Duration) *TFO {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = nop.DefaultSLogger()
	}
	return &TFO{cfg: cfg, logger: logger, timeout: timeout, dial: tfoDial}
}

var _ Connector = (*TFO)(nil)

// Connect implements [Connector], dispatching to the plain baseline dial
// or the cookie-priming/cookie-reuse pair depending on req.Config.
func (c *TFO) Connect(ctx context.Context, req job.Request, addr netip.AddrPort) record.Active {
	if req.Scratch.BaselineFailed {
		return skipped(req, addr, time.Now())
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if req.Config == 0 {
		return c.connectBaseline(ctx, req, addr)
	}
	return c.connectCookieReuse(ctx, req, addr)
}

// connectBaseline opens a plain stream socket with no Fast Open option
// set, the non-TFO leg the plugin's verdict is measured against.
func (c *TFO) connectBaseline(ctx context.Context, req job.Request, addr netip.AddrPort) record.Active {
	started := time.Now()
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
		JobID: req.Job.ID, Config: req.Config, SourcePort: port, RemoteAddr: addr,
		State: state, Started: started, Finished: finished, ErrClass: errClass,
	}
}

// connectCookieReuse runs the priming send (phase 0, result discarded)
// and the cookie-reuse send (phase 1, the reported attempt), both over
// the platform Fast Open dial path.
func (c *TFO) connectCookieReuse(ctx context.Context, req job.Request, addr netip.AddrPort) record.Active {
	primePayload := messageFor(req, addr.Port(), 0)
	if _, err := c.dial(ctx, addr, primePayload); err != nil {
		c.logger.Debug("tfo: cookie priming send failed", "jobID", req.Job.ID, "error", err.Error())
	}

	started := time.Now()
	reusePayload := messageFor(req, addr.Port(), 1)
	port, err := c.dial(ctx, addr, reusePayload)
	finished := time.Now()
	state, errClass := deriveState(err, c.cfg.ErrClassifier)

	return record.Active{
		JobID: req.Job.ID, Config: req.Config, SourcePort: port, RemoteAddr: addr,
		State: state, Started: started, Finished: finished, ErrClass: errClass,
	}
}
