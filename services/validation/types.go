// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation cleans machine-generated question/answer sets attached
// to frames of a visual scene before they are accepted as benchmark ground
// truth.
//
// The pipeline runs four filtering stages over a per-frame QA set:
//
//	raw QASet -> FrequencyFilter -> ConflictResolver ->
//	IterativeValidator -> MeasurementCrossValidator -> validated QASet
//
// Scene object counts are extracted once from the combined scene description
// and feed both the frequency filter's classification context and the
// measurement cross-check. Every stage returns a fresh QASet with the same
// frame keys as its input; frames are never dropped, only their contents are
// filtered. Every removal is recorded in an append-only audit log.
package validation

import (
	"regexp"
	"sort"
	"strings"
)

// QAItem is a single question/answer/category record attached to a frame.
type QAItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

// QASet maps a frame id to its ordered QA items.
//
// The frame id is opaque; it typically names an image file sampled from the
// scene trajectory. Stages treat frames as atomic grouping units.
type QASet map[string][]QAItem

// Clone returns a deep copy of the set.
//
// Stages never mutate their input; they clone and filter.
func (s QASet) Clone() QASet {
	out := make(QASet, len(s))
	for frame, items := range s {
		copied := make([]QAItem, len(items))
		copy(copied, items)
		out[frame] = copied
	}
	return out
}

// Frames returns the frame ids in sorted order.
//
// Every scan that is order-sensitive (the frequency filter's budget
// decrement, audit output) iterates frames in this order so results are
// reproducible.
func (s QASet) Frames() []string {
	frames := make([]string, 0, len(s))
	for frame := range s {
		frames = append(frames, frame)
	}
	sort.Strings(frames)
	return frames
}

// Len returns the total number of QA items across all frames.
func (s QASet) Len() int {
	n := 0
	for _, items := range s {
		n += len(items)
	}
	return n
}

// qaPair identifies a QA item by its (question, answer) text, ignoring the
// frame it lives in. The iterative loop's stability check compares sets of
// these across passes.
type qaPair struct {
	question string
	answer   string
}

// pairSet collects the distinct (question, answer) pairs in the set.
func (s QASet) pairSet() map[qaPair]struct{} {
	pairs := make(map[qaPair]struct{}, s.Len())
	for _, items := range s {
		for _, item := range items {
			pairs[qaPair{item.Question, item.Answer}] = struct{}{}
		}
	}
	return pairs
}

// samePairs reports whether both sets contain exactly the same
// (question, answer) pairs.
func samePairs(a, b map[qaPair]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for pair := range a {
		if _, ok := b[pair]; !ok {
			return false
		}
	}
	return true
}

// AnswerType tags the conflict-resolution class of an answer. It is derived
// from the answer text, never stored.
type AnswerType string

const (
	// AnswerBoolean is a case-insensitive "yes" or "no".
	AnswerBoolean AnswerType = "boolean"

	// AnswerNumeric is an optional-decimal numeral such as "3" or "2.5".
	AnswerNumeric AnswerType = "numeric"

	// AnswerText is anything else. Text answers are never resolved
	// against each other.
	AnswerText AnswerType = "text"
)

// numericAnswerPattern matches a pure integer or decimal numeral.
var numericAnswerPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

// InferAnswerType classifies an answer as boolean, numeric, or text.
//
// Description:
//
//	The classification is deterministic and drives the ConflictResolver's
//	precedence rules: "yes"/"no" (any case) is boolean, a bare numeral is
//	numeric, everything else is text.
//
// Inputs:
//
//	answer - The raw answer text. Surrounding whitespace is ignored.
//
// Outputs:
//
//	AnswerType - One of AnswerBoolean, AnswerNumeric, AnswerText.
func InferAnswerType(answer string) AnswerType {
	trimmed := strings.ToLower(strings.TrimSpace(answer))
	if trimmed == "yes" || trimmed == "no" {
		return AnswerBoolean
	}
	if numericAnswerPattern.MatchString(trimmed) {
		return AnswerNumeric
	}
	return AnswerText
}
