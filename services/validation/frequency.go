// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"github.com/AleutianAI/AleutianVQA/services/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ReasonOverusedObject is the audit reason for frequency-filter removals.
const ReasonOverusedObject = "overused_object"

// wordPattern tokenizes question text into word tokens.
var wordPattern = regexp.MustCompile(`\w+`)

// FrequencyFilter suppresses questions about objects referenced so often
// that they reflect generation bias rather than scene salience.
//
// Description:
//
//	The filter asks the oracle which question tokens denote physical
//	objects, counts how often each object word occurs across all question
//	text, and marks objects above multiplier x median as overused. It then
//	removes questions referencing overused objects, decrementing each
//	object's remaining overuse budget per removal, until every object is
//	back under the threshold or no candidates remain.
//
//	Which questions survive for an object near the threshold depends on
//	scan order, so candidates are walked in a fixed order: frame id
//	ascending, then item position. The upstream generator shuffled this
//	scan; the shuffle was unreproducible and is deliberately not kept.
//
//	If the classification call fails or returns no usable word set the
//	stage is a pass-through, logged and counted, never an error.
//
// Thread Safety: Run may be called concurrently with distinct QASets; the
// overuse budget is local to each Run call.
type FrequencyFilter struct {
	oracle     llm.LLMClient
	prompt     string
	multiplier float64
	audit      *AuditLog
}

// NewFrequencyFilter builds the filter.
//
// Inputs:
//
//	oracle - Word-classification oracle, already retry-wrapped.
//	prompt - Classification prompt; the JSON word list is appended.
//	multiplier - Threshold scale over the median count (default 3).
//	audit - Removal log. Must not be nil.
func NewFrequencyFilter(oracle llm.LLMClient, prompt string, multiplier float64, audit *AuditLog) *FrequencyFilter {
	return &FrequencyFilter{
		oracle:     oracle,
		prompt:     prompt,
		multiplier: multiplier,
		audit:      audit,
	}
}

// Run filters the QA set and returns a new set with the same frame keys.
//
// Inputs:
//
//	ctx - Cancellation context for the classification call.
//	set - Input QA set. Not mutated.
//	counts - Scene inventory; object names are added to the
//	         classification prompt as context. May be nil.
//
// Outputs:
//
//	QASet - Filtered copy, every input frame key present.
//	error - Only context cancellation; oracle failure falls back to
//	        pass-through.
func (f *FrequencyFilter) Run(ctx context.Context, set QASet, counts SceneCounts) (QASet, error) {
	ctx, span := otel.Tracer("aleutian.vqa.validation").Start(ctx, "FrequencyFilter.Run")
	defer span.End()

	overused, threshold, err := f.overusedObjects(ctx, set, counts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("Object word classification unusable, frequency filter skipped", "error", err)
		oracleFallbacksTotal.WithLabelValues("frequency_filter").Inc()
		span.SetAttributes(attribute.Bool("fallback", true))
		return set.Clone(), nil
	}
	span.SetAttributes(
		attribute.Int("overused_objects", len(overused)),
		attribute.Float64("threshold", threshold),
	)
	if len(overused) == 0 {
		return set.Clone(), nil
	}

	filtered := make(QASet, len(set))
	for frame := range set {
		filtered[frame] = []QAItem{}
	}

	removed := 0
	budgetExhausted := false
	for _, frame := range set.Frames() {
		for _, item := range set[frame] {
			if budgetExhausted {
				filtered[frame] = append(filtered[frame], item)
				continue
			}

			hits := overusedHits(item.Question, overused)
			if len(hits) == 0 {
				filtered[frame] = append(filtered[frame], item)
				continue
			}

			removed++
			f.audit.Record(LogEntry{Frame: frame, Question: item.Question, Reason: ReasonOverusedObject})
			removalsTotal.WithLabelValues(ReasonOverusedObject).Inc()

			for word, cnt := range hits {
				overused[word] -= cnt
				if float64(overused[word]) <= threshold {
					delete(overused, word)
				}
			}
			if len(overused) == 0 {
				budgetExhausted = true
			}
		}
	}

	slog.Info("Frequency filter removed questions", "removed", removed)
	span.SetAttributes(attribute.Int("removed", removed))
	return filtered, nil
}

// overusedObjects classifies question tokens and returns the objects above
// the overuse threshold with their current counts.
func (f *FrequencyFilter) overusedObjects(ctx context.Context, set QASet, counts SceneCounts) (map[string]int, float64, error) {
	allWords := make([]string, 0, 256)
	for _, frame := range set.Frames() {
		for _, item := range set[frame] {
			allWords = append(allWords, wordPattern.FindAllString(item.Question, -1)...)
		}
	}
	if len(allWords) == 0 {
		return nil, 0, fmt.Errorf("no question tokens")
	}

	unique := uniqueSorted(allWords)
	objectWords, err := f.classifyObjectWords(ctx, unique, counts)
	if err != nil {
		return nil, 0, err
	}
	if len(objectWords) == 0 {
		return nil, 0, fmt.Errorf("empty object word set")
	}

	objectCounts := make(map[string]int)
	for _, word := range allWords {
		if _, ok := objectWords[word]; ok {
			objectCounts[word]++
		}
	}
	if len(objectCounts) == 0 {
		return map[string]int{}, 0, nil
	}

	values := make([]int, 0, len(objectCounts))
	for _, cnt := range objectCounts {
		values = append(values, cnt)
	}
	threshold := f.multiplier * median(values)

	overused := make(map[string]int)
	for obj, cnt := range objectCounts {
		if float64(cnt) > threshold {
			overused[obj] = cnt
		}
	}
	return overused, threshold, nil
}

// classifyObjectWords asks the oracle which words denote physical objects.
func (f *FrequencyFilter) classifyObjectWords(ctx context.Context, words []string, counts SceneCounts) (map[string]struct{}, error) {
	wordJSON, err := json.Marshal(words)
	if err != nil {
		return nil, fmt.Errorf("marshal word list: %w", err)
	}

	prompt := f.prompt
	if len(counts) > 0 {
		inventory, _ := json.Marshal(counts.ObjectNames())
		prompt += "\n\nKnown scene objects:\n" + string(inventory)
	}
	prompt += "\n\n" + string(wordJSON)

	resp, err := f.oracle.Generate(ctx, prompt, llm.GenerationParams{})
	if err != nil {
		return nil, err
	}
	classified, err := ParseWordList(resp)
	if err != nil {
		return nil, err
	}

	objects := make(map[string]struct{}, len(classified))
	for _, word := range classified {
		objects[word] = struct{}{}
	}
	return objects, nil
}

// overusedHits counts how often each overused object occurs in the question.
func overusedHits(question string, overused map[string]int) map[string]int {
	hits := make(map[string]int)
	for _, word := range wordPattern.FindAllString(question, -1) {
		if _, ok := overused[word]; ok {
			hits[word]++
		}
	}
	return hits
}

// uniqueSorted returns the distinct words in sorted order so the
// classification prompt is identical across runs.
func uniqueSorted(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; !ok {
			seen[w] = struct{}{}
			out = append(out, w)
		}
	}
	sort.Strings(out)
	return out
}

// median returns the statistical median of the values.
func median(values []int) float64 {
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}
