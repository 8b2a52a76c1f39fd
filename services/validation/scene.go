// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// SceneCounts maps a lowercase object name to the total count stated for it
// in the scene description. Multiple mentions accumulate.
//
// SceneCounts is computed once per scene and is immutable for the remainder
// of the pipeline run.
type SceneCounts map[string]int

// numeralWords maps English numerals to their values. Descriptions mix
// digits and spelled-out counts ("3 chairs", "three lamps").
var numeralWords = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10,
}

// countMentionPattern matches "<count> <object>" where count is a digit run
// or a spelled-out numeral up to ten.
var countMentionPattern = regexp.MustCompile(
	`(?i)\b(\d+|zero|one|two|three|four|five|six|seven|eight|nine|ten)\s+([\w\-]+)`,
)

// BuildSceneCounts extracts labeled object counts from a scene description.
//
// Description:
//
//	Scans for all non-overlapping "<count> <word>" mentions, lowercases the
//	object token, and sums counts per object across mentions. The scan is
//	purely lexical; no oracle call is involved. An empty description yields
//	an empty mapping.
//
// Inputs:
//
//	description - The concatenated scene description text.
//
// Outputs:
//
//	SceneCounts - Accumulated per-object counts, keyed by lowercase token.
func BuildSceneCounts(description string) SceneCounts {
	counts := make(SceneCounts)
	for _, m := range countMentionPattern.FindAllStringSubmatch(description, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			n = numeralWords[strings.ToLower(m[1])]
		}
		counts[strings.ToLower(m[2])] += n
	}
	return counts
}

// ObjectNames returns the counted object names in sorted order.
//
// The frequency filter includes these in its classification prompt as known
// scene inventory.
func (c SceneCounts) ObjectNames() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
