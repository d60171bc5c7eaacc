// SPDX-License-Identifier: GPL-3.0-or-later

package connector

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/netip"
	"time"

	"github.com/bassosimone/nop"
	"github.com/bassosimone/pathspider/internal/job"
	"github.com/bassosimone/pathspider/internal/record"
)

// HTTP is the built-in "http"/"https" connector: a GET over HTTP(S),
// honoring extra client options such as forcing HTTP/2.
type HTTP struct {
	cfg     *nop.Config
	logger  nop.SLogger
	timeout time.Duration

	// UseTLS selects the "https" connector over "http".
	UseTLS bool

	// NextProtos is the ALPN protocol list offered during the TLS
	// handshake when UseTLS is set. A plugin forces HTTP/2 negotiation by
	// putting "h2" first.
	NextProtos []string
}

// NewHTTP returns a [*HTTP] connector. A zero timeout uses
// [DefaultTimeout]. A nil nextProtos defaults to {"http/1.1"}.
func NewHTTP(cfg *nop.Config, logger nop.SLogger, timeout time.Duration, useTLS bool, nextProtos []string) *HTTP {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = nop.DefaultSLogger()
	}
	if len(nextProtos) == 0 {
		nextProtos = []string{"http/1.1"}
	}
	return &HTTP{cfg: cfg, logger: logger, timeout: timeout, UseTLS: useTLS, NextProtos: nextProtos}
}

var _ Connector = (*HTTP)(nil)

// Connect implements [Connector].
func (c *HTTP) Connect(ctx context.Context, req job.Request, addr netip.AddrPort) record.Active {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpConn, err := c.dial(ctx, addr, req.Job.Domain)
	if err != nil {
		finished := time.Now()
		state, errClass := deriveState(err, c.cfg.ErrClassifier)
		return record.Active{
			JobID: req.Job.ID, Config: req.Config, RemoteAddr: addr,
			State: state, Started: started, Finished: finished, ErrClass: errClass,
		}
	}
	defer httpConn.Close()
	port := sourcePort(httpConn.Conn())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(req, addr), http.NoBody)
	if err != nil {
		finished := time.Now()
		return record.Active{
			JobID: req.Job.ID, Config: req.Config, SourcePort: port, RemoteAddr: addr,
			State: record.StateFailed, Started: started, Finished: finished,
			ErrClass: c.cfg.ErrClassifier.Classify(err),
		}
	}
	if req.Job.Domain != "" {
		httpReq.Host = req.Job.Domain
	}

	resp, err := httpConn.RoundTrip(httpReq)
	finished := time.Now()
	state, errClass := deriveState(err, c.cfg.ErrClassifier)

	fields := make(map[string]any)
	if resp != nil {
		resp.Body.Close()
		fields["http_status"] = resp.StatusCode
		fields["http_proto"] = resp.Proto
	}

	return record.Active{
		JobID: req.Job.ID, Config: req.Config, SourcePort: port, RemoteAddr: addr,
		State: state, Started: started, Finished: finished, ErrClass: errClass,
		Fields: fields,
	}
}

// requestURL builds the GET target. The scheme must match the transport:
// an h2 transport rejects "http://" URLs outright. The job's domain is
// the host when present; the literal address otherwise.
func (c *HTTP) requestURL(req job.Request, addr netip.AddrPort) string {
	scheme := "http"
	if c.UseTLS {
		scheme = "https"
	}
	host := req.Job.Domain
	if host == "" {
		host = addr.String()
	}
	return scheme + "://" + host + req.Job.URL()
}

func (c *HTTP) dial(ctx context.Context, addr netip.AddrPort, serverName string) (*nop.HTTPConn, error) {
	epntOp := nop.NewEndpointFunc(addr)
	connectOp := nop.NewConnectFunc(c.cfg, "tcp", c.logger)
	observeOp := nop.NewObserveConnFunc(c.cfg, c.logger)
	cancelOp := nop.NewCancelWatchFunc()

	if !c.UseTLS {
		httpConnOp := nop.NewHTTPConnFuncPlain(c.cfg, c.logger)
		pipe := nop.Compose5(epntOp, connectOp, observeOp, cancelOp, httpConnOp)
		return pipe.Call(ctx, nop.Unit{})
	}

	tlsConfig := &tls.Config{ServerName: serverName, NextProtos: c.NextProtos}
	tlsOp := nop.NewTLSHandshakeFunc(c.cfg, tlsConfig, c.logger)
	httpConnOp := nop.NewHTTPConnFuncTLS(c.cfg, c.logger)
	pipe := nop.Compose6(epntOp, connectOp, observeOp, cancelOp, tlsOp, httpConnOp)
	return pipe.Call(ctx, nop.Unit{})
}
