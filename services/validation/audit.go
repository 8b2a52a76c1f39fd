// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// LogEntry records one removal decision for the audit trail.
//
// Entries are append-only and are not consumed by any downstream stage; they
// exist so every removed question can be explained after the fact.
type LogEntry struct {
	Frame    string
	Question string
	Reason   string

	// Answer and Expected carry the conflicting values for "wrong count"
	// removals. Both empty for other reasons.
	Answer   string
	Expected string
}

// AuditLog is the append-only removal log shared by all pipeline stages.
//
// Each removal is written as one plain-text block. The whole block is
// assembled first and written with a single Write under a mutex, so
// concurrent appends from parallel frame workers never interleave.
//
// Thread Safety: safe for concurrent use.
type AuditLog struct {
	mu    sync.Mutex
	w     io.Writer
	runID string
}

// NewAuditLog creates an audit log writing to w, tagged with a fresh run id.
//
// The run id header separates runs when the same file is appended to across
// invocations.
func NewAuditLog(w io.Writer) *AuditLog {
	l := &AuditLog{w: w, runID: uuid.NewString()}
	fmt.Fprintf(w, "=== validation run %s ===\n\n", l.runID)
	return l
}

// OpenAuditLog opens (or creates) an audit log file in append mode.
func OpenAuditLog(path string) (*AuditLog, *os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit log: %w", err)
	}
	return NewAuditLog(f), f, nil
}

// RunID returns the id stamped on this run's header.
func (l *AuditLog) RunID() string {
	return l.runID
}

// Record appends one removal block.
//
// Description:
//
//	Formats the entry as a human-readable block:
//
//		Frame: <frame>
//		Question: <question>
//		Answer: <answer>  Expected: <expected>   (only for count mismatches)
//		Reason: <reason>
//
//	followed by a blank line, and writes it atomically.
//
// Inputs:
//
//	entry - The removal to record. Reason must be non-empty.
func (l *AuditLog) Record(entry LogEntry) {
	var b strings.Builder
	fmt.Fprintf(&b, "Frame: %s\n", entry.Frame)
	fmt.Fprintf(&b, "Question: %s\n", entry.Question)
	if entry.Expected != "" {
		fmt.Fprintf(&b, "Answer: %s  Expected: %s\n", entry.Answer, entry.Expected)
	}
	fmt.Fprintf(&b, "Reason: %s\n\n", entry.Reason)

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.w, b.String())
}
