// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// ReasonWrongCount is the audit reason for measurement mismatches.
const ReasonWrongCount = "wrong count"

// MeasurementCategory marks counting questions in the upstream generator's
// category taxonomy.
const MeasurementCategory = "Measurement"

// howManyPattern extracts the counted object from a measurement question.
// Anchored at the start, mirroring the generator's question phrasing.
var howManyPattern = regexp.MustCompile(`(?i)^How many ([\w\s\-]+?) (?:are|is) `)

// MeasurementCrossValidator rejects counting answers that contradict the
// scene description's stated object counts.
//
// Description:
//
//	Only items in the Measurement category are checked, and only when
//	their answer parses as a clean integer (thousands separators
//	accepted). The counted object is read from the "How many <object>
//	are/is" question prefix. A mismatch against SceneCounts removes the
//	item with reason "wrong count"; an object absent from SceneCounts
//	keeps the item, since absence of evidence is not evidence of error.
//
// Thread Safety: safe for concurrent use; the scene counts are immutable.
type MeasurementCrossValidator struct {
	counts SceneCounts
	audit  *AuditLog
}

// NewMeasurementCrossValidator builds the validator over the scene's
// extracted counts. audit must not be nil.
func NewMeasurementCrossValidator(counts SceneCounts, audit *AuditLog) *MeasurementCrossValidator {
	return &MeasurementCrossValidator{counts: counts, audit: audit}
}

// Run filters mismatched measurement items, returning a new QASet with the
// same frame keys.
func (m *MeasurementCrossValidator) Run(set QASet) QASet {
	filtered := make(QASet, len(set))
	removed := 0

	for frame, items := range set {
		kept := make([]QAItem, 0, len(items))
		for _, item := range items {
			if m.mismatched(frame, item) {
				removed++
				continue
			}
			kept = append(kept, item)
		}
		filtered[frame] = kept
	}

	if removed > 0 {
		slog.Info("Measurement cross-check removed questions", "removed", removed)
	}
	return filtered
}

// mismatched reports whether the item contradicts the scene counts,
// recording the removal when it does.
func (m *MeasurementCrossValidator) mismatched(frame string, item QAItem) bool {
	if item.Category != MeasurementCategory {
		return false
	}

	answer, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(item.Answer), ",", ""))
	if err != nil {
		return false
	}

	match := howManyPattern.FindStringSubmatch(item.Question)
	if match == nil {
		return false
	}
	object := strings.ToLower(strings.TrimSpace(match[1]))

	expected, known := m.counts[object]
	if !known || expected == answer {
		return false
	}

	m.audit.Record(LogEntry{
		Frame:    frame,
		Question: item.Question,
		Answer:   item.Answer,
		Expected: strconv.Itoa(expected),
		Reason:   ReasonWrongCount,
	})
	removalsTotal.WithLabelValues(ReasonWrongCount).Inc()
	return true
}
