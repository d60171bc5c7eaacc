// SPDX-License-Identifier: GPL-3.0-or-later

// Package record defines the active record produced by a connector worker:
// the per-probe outcome of executing one (job, configuration) pair.
package record

import (
	"net/netip"
	"time"

	"github.com/bassosimone/pathspider/internal/flow"
)

// ConnState is the outcome of a single probe.
type ConnState int

const (
	// StateOK indicates the probe connected (and, where applicable,
	// completed its application-layer exchange) successfully.
	StateOK ConnState = iota

	// StateFailed indicates a connection-level failure (refused,
	// unreachable, reset, ...).
	StateFailed

	// StateTimeout indicates the per-probe timeout elapsed before the
	// probe completed.
	StateTimeout

	// StateSkipped indicates the probe was not attempted because the
	// job's scratch map indicated a prerequisite configuration already
	// failed (e.g., TFO's baseline-failed skip).
	StateSkipped
)

// String renders the state the way it appears in logs and verdicts.
func (s ConnState) String() string {
	switch s {
	case StateOK:
		return "OK"
	case StateFailed:
		return "FAILED"
	case StateTimeout:
		return "TIMEOUT"
	case StateSkipped:
		return "SKIPPED"
	default:
		return "UNKNOWN"
	}
}

// Active is the record produced by a connector worker for one probe.
type Active struct {
	// JobID identifies the job this record belongs to.
	JobID string

	// Config is the configuration index this record was produced under.
	Config int

	// SourcePort is the source port chosen by the OS for this probe's
	// connection. Zero if the probe never reached the point of obtaining
	// a local address (e.g., SKIPPED, or DNS resolution failure).
	SourcePort uint16

	// RemoteAddr is the destination the probe connected to.
	RemoteAddr netip.AddrPort

	// State is the probe's outcome.
	State ConnState

	// Started and Finished bound the probe's wall-clock execution.
	Started  time.Time
	Finished time.Time

	// ErrClass is a portable error classification (see nop.ErrClassifier),
	// empty when State is OK or SKIPPED.
	ErrClass string

	// Fields holds plugin-specific data (TFO cookie timers, HTTP info, ...).
	// Plugins document their own key names; the merger passes this through
	// to combine() untouched.
	Fields map[string]any
}

// Duration returns the probe's wall-clock execution time.
func (a Active) Duration() time.Duration {
	if a.Finished.IsZero() || a.Started.IsZero() {
		return 0
	}
	return a.Finished.Sub(a.Started)
}

// Tuple returns the canonical five-tuple for this probe's connection, or
// false if the probe never obtained a source port (SKIPPED or a failure
// before the OS assigned one). The shape matches [flow.FiveTuple] exactly
// so the merger can join on equality.
func (a Active) Tuple(protocol string) (t flow.FiveTuple, ok bool) {
	if a.SourcePort == 0 {
		return flow.FiveTuple{}, false
	}
	return flow.FiveTuple{
		Protocol: protocol,
		DstAddr:  a.RemoteAddr.Addr(),
		DstPort:  a.RemoteAddr.Port(),
		SrcPort:  a.SourcePort,
	}, true
}
