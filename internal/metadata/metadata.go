// SPDX-License-Identifier: GPL-3.0-or-later

// Package metadata implements the "metadata" CLI subcommand: derive a
// time range from a result file and write a sidecar JSON file next to
// it.
package metadata

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// timingLine is the subset of a sink.Record this package needs to parse
// out of each result line; it intentionally does not import package sink
// to avoid coupling the metadata/upload CLI tooling to the measurement
// core's internal verdict shape.
type timingLine struct {
	Timing struct {
		Started  time.Time `json:"started"`
		Finished time.Time `json:"finished"`
	} `json:"timing"`
}

// Meta is the sidecar file's schema: the time range the result file
// covers and how many records it holds.
type Meta struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Count int       `json:"count"`
}

// Derive scans a newline-delimited result stream and returns the
// earliest Started and latest Finished timestamp across every record.
func Derive(r io.Reader) (Meta, error) {
	var m Meta
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec timingLine
		if err := json.Unmarshal(line, &rec); err != nil {
			return Meta{}, fmt.Errorf("metadata: line %d: %w", lineNo, err)
		}
		if m.Count == 0 || rec.Timing.Started.Before(m.Start) {
			m.Start = rec.Timing.Started
		}
		if rec.Timing.Finished.After(m.End) {
			m.End = rec.Timing.Finished
		}
		m.Count++
	}
	if err := sc.Err(); err != nil {
		return Meta{}, fmt.Errorf("metadata: %w", err)
	}
	return m, nil
}

// SidecarPath returns the sidecar file path for a result file path.
func SidecarPath(resultPath string) string {
	return resultPath + ".meta.json"
}

// WriteSidecar derives Meta from the result file at resultPath and
// writes it as indented JSON to its [SidecarPath].
func WriteSidecar(resultPath string) (Meta, error) {
	f, err := os.Open(resultPath)
	if err != nil {
		return Meta{}, fmt.Errorf("metadata: %w", err)
	}
	defer f.Close()

	m, err := Derive(f)
	if err != nil {
		return Meta{}, err
	}

	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return Meta{}, fmt.Errorf("metadata: %w", err)
	}
	if err := os.WriteFile(SidecarPath(resultPath), out, 0o644); err != nil {
		return Meta{}, fmt.Errorf("metadata: %w", err)
	}
	return m, nil
}
