// SPDX-License-Identifier: GPL-3.0-or-later

package flow

import (
	"sync"
	"time"
)

// Table is the observer's single-writer flow table. A flow record exists
// in it at most once: either active (receiving packets) or emitted
// (removed).
//
// Table is safe for concurrent use by its owner (the observer goroutine)
// and by readers of snapshot methods ([Table.Len]) from other goroutines,
// but [Table.GetOrCreate], [Table.Emit], and [Table.Sweep] are intended to
// be called only from the observer goroutine, which is the table's single
// writer.
type Table struct {
	mu      sync.Mutex
	records map[FiveTuple]*Record
}

// NewTable returns an empty [Table].
func NewTable() *Table {
	return &Table{records: make(map[FiveTuple]*Record)}
}

// GetOrCreate returns the existing record for tuple, or allocates and
// installs a new one via newFlow if none exists yet. newFlow returns false
// to veto the flow (e.g. an uninteresting protocol); in that case no
// record is installed and ok is false.
func (t *Table) GetOrCreate(tuple FiveTuple, now time.Time, newFlow func() (*Record, bool)) (rec *Record, created, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec, found := t.records[tuple]; found {
		return rec, false, true
	}
	rec, ok = newFlow()
	if !ok {
		return nil, false, false
	}
	rec.Tuple = tuple
	rec.First = now
	rec.Last = now
	t.records[tuple] = rec
	return rec, true, true
}

// Emit removes the record for tuple from the table, returning it. The
// second return value is false if no such record exists (already emitted).
func (t *Table) Emit(tuple FiveTuple) (*Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[tuple]
	if !ok {
		return nil, false
	}
	delete(t.records, tuple)
	return rec, true
}

// Sweep removes and returns every record whose Last timestamp is older
// than now.Add(-idle), implementing the periodic idle-timeout eviction.
func (t *Table) Sweep(now time.Time, idle time.Duration) []*Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	var evicted []*Record
	deadline := now.Add(-idle)
	for tuple, rec := range t.records {
		if rec.Last.Before(deadline) {
			evicted = append(evicted, rec)
			delete(t.records, tuple)
		}
	}
	return evicted
}

// Len returns the number of flows currently active in the table.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// DrainAll empties the table and returns every record it held, used when
// the observer shuts down and remaining flows must still reach the
// merger.
func (t *Table) DrainAll() []*Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Record, 0, len(t.records))
	for tuple, rec := range t.records {
		out = append(out, rec)
		delete(t.records, tuple)
	}
	return out
}
