// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"log/slog"
	"strconv"
	"strings"
)

// Audit reasons for conflict-resolver removals.
const (
	ReasonDuplicate    = "duplicate"
	ReasonPreferYes    = "prefer Yes"
	ReasonLowerNumeric = "lower numeric"
)

// observation is one occurrence of a question across the scene.
type observation struct {
	frame string
	index int
	item  QAItem
	kind  AnswerType
}

// ConflictResolver collapses duplicate questions and resolves conflicting
// answers to the same question text across the whole scene.
//
// Description:
//
//	All occurrences of an exact question text are grouped scene-wide, then
//	resolved per answer type:
//
//	  - exact duplicates (same question, same answer): first kept
//	  - boolean conflicts: "yes" occurrences kept, every "no" removed;
//	    with no "yes" present all "no" occurrences are retained
//	  - numeric conflicts: maximum value kept, lower values removed
//	  - text answers: never resolved, every variant retained
//
//	The resolution is order-independent for a given class: whichever
//	occurrence is scanned first, the same (question, answer) pairs
//	survive. Applying the resolver to its own output is a no-op.
//
// Thread Safety: safe for concurrent use; Run carries no shared state.
type ConflictResolver struct {
	audit *AuditLog
}

// NewConflictResolver builds the resolver. audit must not be nil.
func NewConflictResolver(audit *AuditLog) *ConflictResolver {
	return &ConflictResolver{audit: audit}
}

// Run resolves duplicates and conflicts, returning a new QASet with the
// same frame keys. Within each frame, surviving items keep their relative
// order.
func (r *ConflictResolver) Run(set QASet) QASet {
	groups := make(map[string][]observation)
	questionOrder := make([]string, 0)
	for _, frame := range set.Frames() {
		for i, item := range set[frame] {
			if _, seen := groups[item.Question]; !seen {
				questionOrder = append(questionOrder, item.Question)
			}
			groups[item.Question] = append(groups[item.Question], observation{
				frame: frame,
				index: i,
				item:  item,
				kind:  InferAnswerType(item.Answer),
			})
		}
	}

	// removals marks (frame, index) pairs that lost their resolution.
	removals := make(map[string]map[int]bool)
	drop := func(obs observation, reason string) {
		if removals[obs.frame] == nil {
			removals[obs.frame] = make(map[int]bool)
		}
		removals[obs.frame][obs.index] = true
		r.audit.Record(LogEntry{Frame: obs.frame, Question: obs.item.Question, Reason: reason})
		removalsTotal.WithLabelValues(reason).Inc()
	}

	removed := 0
	for _, question := range questionOrder {
		survivors := r.dropExactDuplicates(groups[question], drop, &removed)

		var boolean, numeric []observation
		for _, obs := range survivors {
			switch obs.kind {
			case AnswerBoolean:
				boolean = append(boolean, obs)
			case AnswerNumeric:
				numeric = append(numeric, obs)
			case AnswerText:
				// kept unconditionally
			}
		}
		removed += resolveBoolean(boolean, drop)
		removed += resolveNumeric(numeric, drop)
	}

	filtered := make(QASet, len(set))
	for frame, items := range set {
		kept := make([]QAItem, 0, len(items))
		for i, item := range items {
			if !removals[frame][i] {
				kept = append(kept, item)
			}
		}
		filtered[frame] = kept
	}

	if removed > 0 {
		slog.Info("Conflict resolver removed questions", "removed", removed)
	}
	return filtered
}

// dropExactDuplicates removes repeated (question, answer) occurrences,
// keeping the first in scan order, and returns the survivors. Boolean
// answers compare case-insensitively, so "Yes" and "YES" are one answer.
func (r *ConflictResolver) dropExactDuplicates(group []observation, drop func(observation, string), removed *int) []observation {
	seen := make(map[string]bool, len(group))
	survivors := make([]observation, 0, len(group))
	for _, obs := range group {
		key := obs.item.Answer
		if obs.kind == AnswerBoolean {
			key = strings.ToLower(strings.TrimSpace(key))
		}
		if seen[key] {
			drop(obs, ReasonDuplicate)
			*removed++
			continue
		}
		seen[key] = true
		survivors = append(survivors, obs)
	}
	return survivors
}

// resolveBoolean keeps the "yes" occurrences of a boolean conflict. When no
// "yes" exists all "no" occurrences stay.
func resolveBoolean(group []observation, drop func(observation, string)) int {
	hasYes := false
	for _, obs := range group {
		if strings.EqualFold(strings.TrimSpace(obs.item.Answer), "yes") {
			hasYes = true
			break
		}
	}
	if !hasYes {
		return 0
	}

	removed := 0
	for _, obs := range group {
		if strings.EqualFold(strings.TrimSpace(obs.item.Answer), "no") {
			drop(obs, ReasonPreferYes)
			removed++
		}
	}
	return removed
}

// resolveNumeric keeps the occurrence(s) with the maximum numeric value.
func resolveNumeric(group []observation, drop func(observation, string)) int {
	if len(group) < 2 {
		return 0
	}

	max := 0.0
	for i, obs := range group {
		v, err := strconv.ParseFloat(strings.TrimSpace(obs.item.Answer), 64)
		if err != nil {
			// cannot happen for AnswerNumeric, but never guess a value
			continue
		}
		if i == 0 || v > max {
			max = v
		}
	}

	removed := 0
	for _, obs := range group {
		v, err := strconv.ParseFloat(strings.TrimSpace(obs.item.Answer), 64)
		if err != nil || v < max {
			drop(obs, ReasonLowerNumeric)
			removed++
		}
	}
	return removed
}
