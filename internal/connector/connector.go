// SPDX-License-Identifier: GPL-3.0-or-later

// Package connector implements the built-in connector workers: tcp,
// http, https, and tfo. Each connector's Connect method never returns a
// Go error; every outcome (success, refusal, timeout, skip) is encoded
// directly on the returned [record.Active].
package connector

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"strconv"
	"time"

	"github.com/bassosimone/nop"
	"github.com/bassosimone/pathspider/internal/job"
	"github.com/bassosimone/pathspider/internal/record"
	"github.com/bassosimone/safeconn"
)

// DefaultTimeout is the default per-probe timeout.
const DefaultTimeout = 5 * time.Second

// Connector executes one probe for a (job, configuration) pair.
type Connector interface {
	Connect(ctx context.Context, req job.Request, addr netip.AddrPort) record.Active
}

// deriveState classifies a pipeline error into a connection state and an
// error class string: FAILED for refused/unreachable, TIMEOUT for an
// expired timer.
func deriveState(err error, classifier nop.ErrClassifier) (record.ConnState, string) {
	if err == nil {
		return record.StateOK, ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return record.StateTimeout, classifier.Classify(err)
	}
	return record.StateFailed, classifier.Classify(err)
}

// skipped builds the active record for a probe request that was never
// attempted because the job's scratch map recorded a prior baseline
// failure.
func skipped(req job.Request, addr netip.AddrPort, now time.Time) record.Active {
	return record.Active{
		JobID:      req.Job.ID,
		Config:     req.Config,
		RemoteAddr: addr,
		State:      record.StateSkipped,
		Started:    now,
		Finished:   now,
	}
}

// sourcePort extracts the OS-chosen local port from a connection's local
// address, the key the merger later joins on. It returns 0 if conn is
// nil or the address cannot be parsed.
func sourcePort(conn net.Conn) uint16 {
	if conn == nil {
		return 0
	}
	_, portStr, err := net.SplitHostPort(safeconn.LocalAddr(conn))
	if err != nil {
		return 0
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return 0
	}
	return uint16(port)
}
