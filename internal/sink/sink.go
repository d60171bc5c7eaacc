// SPDX-License-Identifier: GPL-3.0-or-later

// Package sink implements the newline-delimited result writer: one JSON
// object per job, schema {target, flows[], conditions[], timing}.
package sink

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bassosimone/pathspider/internal/flow"
	"github.com/bassosimone/pathspider/internal/job"
	"github.com/bassosimone/pathspider/internal/merger"
	"github.com/bassosimone/pathspider/internal/record"
)

// Job is the wire representation of a [job.Job].
type Job struct {
	ID     string            `json:"id"`
	IP     string            `json:"ip"`
	Port   uint16            `json:"port"`
	Domain string            `json:"domain,omitempty"`
	Path   string            `json:"path,omitempty"`
	Rank   uint32            `json:"rank,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// Flow is the wire representation of one configuration's [merger.Slot]:
// the active record's outcome plus the matched flow record's fields,
// when one was observed.
type Flow struct {
	Config     int            `json:"config"`
	State      string         `json:"state"`
	SourcePort uint16         `json:"source_port,omitempty"`
	ErrClass   string         `json:"err_class,omitempty"`
	Started    time.Time      `json:"started"`
	Finished   time.Time      `json:"finished"`
	Fields     map[string]any `json:"fields,omitempty"`

	Observed bool   `json:"observed"`
	Tuple    string `json:"tuple,omitempty"`

	TCP *flow.TCPFields `json:"tcp,omitempty"`
	ECN *flow.ECNFields `json:"ecn,omitempty"`
	TFO *flow.TFOFields `json:"tfo,omitempty"`
}

// Timing summarizes a verdict's wall-clock span across every
// configuration's active record.
type Timing struct {
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Record is one line of sink output.
type Record struct {
	Target     Job      `json:"target"`
	Flows      []Flow   `json:"flows"`
	Conditions []string `json:"conditions"`
	Timing     Timing   `json:"timing"`
}

// ToRecord converts a merged [merger.Verdict] into its wire [Record].
func ToRecord(v merger.Verdict) Record {
	rec := Record{
		Target:     jobToWire(v.Target),
		Conditions: v.Conditions,
	}
	for i, slot := range v.Flows {
		f := Flow{
			Config:     i,
			State:      slot.Active.State.String(),
			SourcePort: slot.Active.SourcePort,
			ErrClass:   slot.Active.ErrClass,
			Started:    slot.Active.Started,
			Finished:   slot.Active.Finished,
			Fields:     slot.Active.Fields,
			Observed:   slot.Observed,
		}
		if slot.Flow != nil {
			f.Tuple = tupleString(slot.Flow.Tuple)
			f.TCP = slot.Flow.TCP
			f.ECN = slot.Flow.ECN
			f.TFO = slot.Flow.TFO
		}
		rec.Flows = append(rec.Flows, f)
		rec.Timing = accumulate(rec.Timing, slot.Active)
	}
	return rec
}

func jobToWire(j job.Job) Job {
	return Job{
		ID:     j.ID,
		IP:     j.Addr.Addr().String(),
		Port:   j.Addr.Port(),
		Domain: j.Domain,
		Path:   j.Path,
		Rank:   j.Rank,
		Tags:   j.Tags,
	}
}

func tupleString(t flow.FiveTuple) string {
	return fmt.Sprintf("%s:%d<->%d", t.DstAddr, t.SrcPort, t.DstPort)
}

func accumulate(t Timing, a record.Active) Timing {
	if a.Started.IsZero() {
		return t
	}
	if t.Started.IsZero() || a.Started.Before(t.Started) {
		t.Started = a.Started
	}
	if a.Finished.After(t.Finished) {
		t.Finished = a.Finished
	}
	return t
}

// Writer serializes verdicts as newline-delimited JSON.
type Writer struct {
	w *bufio.Writer
	c io.Closer
}

// New returns a [*Writer] writing to w. If w also implements io.Closer,
// [Writer.Close] closes it too.
func New(w io.Writer) *Writer {
	closer, _ := w.(io.Closer)
	return &Writer{w: bufio.NewWriter(w), c: closer}
}

// Write emits one verdict as a JSON line, flushing immediately so a
// consumer tailing the output file sees results as they complete and so
// each write observably succeeds or fails on its own.
func (w *Writer) Write(v merger.Verdict) error {
	line, err := json.Marshal(ToRecord(v))
	if err != nil {
		return fmt.Errorf("sink: marshal: %w", err)
	}
	if _, err := w.w.Write(line); err != nil {
		return fmt.Errorf("sink: write: %w", err)
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("sink: write: %w", err)
	}
	return w.w.Flush()
}

// Close flushes and, if the underlying writer is closable, closes it.
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		return err
	}
	if w.c != nil {
		return w.c.Close()
	}
	return nil
}
