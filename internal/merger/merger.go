// SPDX-License-Identifier: GPL-3.0-or-later

// Package merger joins active records with observed flow records by
// five-tuple and invokes a plugin's combine function to produce a
// verdict.
package merger

import (
	"sync"
	"time"

	"github.com/bassosimone/nop"
	"github.com/bassosimone/pathspider/internal/flow"
	"github.com/bassosimone/pathspider/internal/job"
	"github.com/bassosimone/pathspider/internal/record"
)

// DefaultMergeTimeout is the default per-job merge window: the time
// allowed, after the last active record for a job arrives, for its flow
// records to show up before emitting with observed=false on the
// unmatched configurations.
const DefaultMergeTimeout = 60 * time.Second

// Slot is one configuration's entry in a verdict's flows[0..K-1] array.
type Slot struct {
	// Active is always populated: every job yields exactly K active
	// records.
	Active record.Active

	// Flow is the matched flow record, nil if none arrived in time.
	Flow *flow.Record

	// Observed is true iff Flow is non-nil.
	Observed bool
}

// Verdict is one job's merged result.
type Verdict struct {
	Target     job.Job
	Flows      []Slot
	Conditions []string
}

// CombineFunc implements a plugin's verdict logic: given the per-job
// flows array, it returns the condition tags to emit.
type CombineFunc func(flows []Slot) []string

type tupleRef struct {
	job    *pendingJob
	config int
}

type pendingJob struct {
	target   job.Job
	slots    []Slot
	filled   int
	deadline time.Time // valid once filled == k
	finished bool
}

// Merger accumulates active and flow records per job and emits a
// [Verdict] once they can be paired or the merge timeout fires.
type Merger struct {
	k            int
	protocol     string
	mergeTimeout time.Duration
	combine      CombineFunc
	emit         func(Verdict)
	logger       nop.SLogger
	now          func() time.Time

	mu           sync.Mutex
	pendingByID  map[string]*pendingJob
	pendingByTup map[flow.FiveTuple]tupleRef
	orphanFlows  map[flow.FiveTuple]*flow.Record
}

// Config configures a [Merger].
type Config struct {
	// K is the number of configurations every job yields exactly one
	// active record for.
	K int

	// Protocol is the transport protocol every built-in connector uses to
	// build its canonical tuple. Defaults to "tcp" (every built-in
	// connector — tcp, http, https, tfo — operates over TCP).
	Protocol string

	// MergeTimeout defaults to [DefaultMergeTimeout].
	MergeTimeout time.Duration

	// Combine implements the plugin's verdict function. Required.
	Combine CombineFunc

	// Emit receives each finished verdict. Required.
	Emit func(Verdict)

	// Logger defaults to a no-op logger.
	Logger nop.SLogger

	// Now defaults to time.Now.
	Now func() time.Time
}

// New returns a [*Merger] for cfg.
func New(cfg Config) *Merger {
	if cfg.Protocol == "" {
		cfg.Protocol = "tcp"
	}
	if cfg.MergeTimeout == 0 {
		cfg.MergeTimeout = DefaultMergeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = nop.DefaultSLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Merger{
		k:            cfg.K,
		protocol:     cfg.Protocol,
		mergeTimeout: cfg.MergeTimeout,
		combine:      cfg.Combine,
		emit:         cfg.Emit,
		logger:       cfg.Logger,
		now:          cfg.Now,
		pendingByID:  make(map[string]*pendingJob),
		pendingByTup: make(map[flow.FiveTuple]tupleRef),
		orphanFlows:  make(map[flow.FiveTuple]*flow.Record),
	}
}

func (m *Merger) jobFor(target job.Job) *pendingJob {
	p, ok := m.pendingByID[target.ID]
	if !ok {
		p = &pendingJob{target: target, slots: make([]Slot, m.k)}
		m.pendingByID[target.ID] = p
	}
	return p
}

// SubmitActive records one job's active record for a configuration.
// target must be the job the active record belongs to.
func (m *Merger) SubmitActive(target job.Job, active record.Active) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.jobFor(target)
	if p.finished || active.Config < 0 || active.Config >= m.k {
		return
	}
	p.slots[active.Config].Active = active
	p.filled++

	if tuple, ok := active.Tuple(m.protocol); ok {
		if frec, found := m.orphanFlows[tuple]; found {
			p.slots[active.Config].Flow = frec
			p.slots[active.Config].Observed = true
			delete(m.orphanFlows, tuple)
		} else {
			m.pendingByTup[tuple] = tupleRef{job: p, config: active.Config}
		}
	}

	if p.filled == m.k {
		p.deadline = m.now().Add(m.mergeTimeout)
		if m.allObserved(p) {
			m.finalize(p)
		}
	}
}

// SubmitFlow records an observed flow, matching it to whichever job
// claimed its tuple via SubmitActive, or buffering it as an orphan if no
// active record has claimed it yet; active and flow records for the same
// job may arrive in either order.
func (m *Merger) SubmitFlow(rec *flow.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref, ok := m.pendingByTup[rec.Tuple]
	if !ok {
		m.orphanFlows[rec.Tuple] = rec
		return
	}
	delete(m.pendingByTup, rec.Tuple)
	if ref.job.finished {
		return
	}
	ref.job.slots[ref.config].Flow = rec
	ref.job.slots[ref.config].Observed = true

	if ref.job.filled == m.k && m.allObserved(ref.job) {
		m.finalize(ref.job)
	}
}

func (m *Merger) allObserved(p *pendingJob) bool {
	for _, s := range p.slots {
		if !s.Observed {
			return false
		}
	}
	return true
}

// Sweep finalizes every job whose merge timeout has elapsed, emitting
// with observed=false on whichever configurations never matched a flow
// record.
func (m *Merger) Sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.pendingByID {
		if p.finished || p.filled < m.k {
			continue
		}
		if now.After(p.deadline) {
			m.logger.Info("merger: merge timeout", "jobID", p.target.ID)
			m.finalize(p)
		}
	}
}

// finalize must be called with m.mu held.
func (m *Merger) finalize(p *pendingJob) {
	p.finished = true
	delete(m.pendingByID, p.target.ID)
	for tuple, ref := range m.pendingByTup {
		if ref.job == p {
			delete(m.pendingByTup, tuple)
		}
	}

	conditions := m.combine(p.slots)
	m.emit(Verdict{Target: p.target, Flows: p.slots, Conditions: conditions})
}

// Flush finalizes every still-pending job regardless of fill state or
// deadline, used on shutdown so buffered active records still produce a
// verdict.
func (m *Merger) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pendingByID {
		if !p.finished {
			m.finalize(p)
		}
	}
}
