// SPDX-License-Identifier: GPL-3.0-or-later

// Package jobsource implements the newline-delimited job reader: one
// JSON object per line, schema {ip, port, domain, rank, tags}.
package jobsource

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/netip"

	"github.com/bassosimone/pathspider/internal/job"
	"github.com/google/uuid"
)

// record is the wire schema of one input line.
type record struct {
	IP     string            `json:"ip"`
	Port   uint16            `json:"port"`
	Domain string            `json:"domain,omitempty"`
	Path   string            `json:"path,omitempty"`
	Rank   uint32            `json:"rank,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// Source reads [job.Job] values from a newline-delimited JSON stream.
// Each job is assigned a fresh ID, since the input schema carries no
// identifier of its own and the merger keys pending jobs by ID.
type Source struct {
	scanner *bufio.Scanner
	line    int
}

// New returns a [*Source] reading from r.
func New(r io.Reader) *Source {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Source{scanner: sc}
}

// Next returns the next job, or io.EOF once the stream is exhausted.
// Blank lines are skipped; a malformed line returns a descriptive error
// rather than panicking, so a single bad input line doesn't take down a
// long-running measurement without explanation.
func (s *Source) Next() (job.Job, error) {
	for s.scanner.Scan() {
		s.line++
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			return job.Job{}, fmt.Errorf("jobsource: line %d: %w", s.line, err)
		}
		addr, err := netip.ParseAddr(rec.IP)
		if err != nil {
			return job.Job{}, fmt.Errorf("jobsource: line %d: invalid ip %q: %w", s.line, rec.IP, err)
		}
		return job.Job{
			ID:     uuid.NewString(),
			Addr:   netip.AddrPortFrom(addr, rec.Port),
			Domain: rec.Domain,
			Path:   rec.Path,
			Rank:   rec.Rank,
			Tags:   rec.Tags,
		}, nil
	}
	if err := s.scanner.Err(); err != nil {
		return job.Job{}, fmt.Errorf("jobsource: %w", err)
	}
	return job.Job{}, io.EOF
}

// All drains the source into a slice, for synchronized mode, which
// needs the full job set up front before its first round barrier.
func All(s *Source) ([]job.Job, error) {
	var jobs []job.Job
	for {
		j, err := s.Next()
		if err == io.EOF {
			return jobs, nil
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
}
