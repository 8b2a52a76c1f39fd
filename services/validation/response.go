// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fencedBlockPattern captures the payload of a ```json ... ``` (or bare
// ```) block, tolerating a leading escaped backslash some models emit.
var fencedBlockPattern = regexp.MustCompile("(?is)\\\\?```(?:json)?\\s*([\\s\\S]*?)\\s*\\\\?```")

// jsonPrefixPattern strips a stray "json" or "\json" label left inside the
// fence payload.
var jsonPrefixPattern = regexp.MustCompile(`(?i)^\\?json\s*`)

// CleanResponse strips markdown code-fence markup around an oracle response.
//
// Description:
//
//	Models frequently wrap JSON in fenced blocks, sometimes with a "json"
//	language tag or a preamble sentence before the fence. When a fenced
//	block is present its payload is returned; otherwise the trimmed input
//	is returned unchanged.
//
// Inputs:
//
//	text - Raw response text from the oracle.
//
// Outputs:
//
//	string - The best candidate JSON payload.
func CleanResponse(text string) string {
	if m := fencedBlockPattern.FindStringSubmatch(text); m != nil {
		return jsonPrefixPattern.ReplaceAllString(strings.TrimSpace(m[1]), "")
	}
	return strings.TrimSpace(text)
}

// qaWire mirrors QAItem with pointer fields so missing keys can be told
// apart from empty values during response validation.
type qaWire struct {
	Question *string `json:"question"`
	Answer   *string `json:"answer"`
	Category *string `json:"category"`
}

// ParseQABatch parses an oracle response into QA items.
//
// Description:
//
//	Cleans fence markup, decodes the payload as an array of QA objects, and
//	normalizes a bare single object to a one-element array. Entries missing
//	any of the required keys (question, answer, category) are discarded;
//	well-formed siblings in the same response are kept.
//
// Inputs:
//
//	text - Raw response text from the judging oracle.
//
// Outputs:
//
//	[]QAItem - The usable entries, possibly empty.
//	error - ErrMalformedResponse when the payload decodes as neither an
//	        array nor a single object.
func ParseQABatch(text string) ([]QAItem, error) {
	cleaned := CleanResponse(text)

	var wire []qaWire
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		var single qaWire
		if err2 := json.Unmarshal([]byte(cleaned), &single); err2 != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		wire = []qaWire{single}
	}

	items := make([]QAItem, 0, len(wire))
	for _, w := range wire {
		if w.Question == nil || w.Answer == nil || w.Category == nil {
			continue
		}
		items = append(items, QAItem{
			Question: *w.Question,
			Answer:   *w.Answer,
			Category: *w.Category,
		})
	}
	return items, nil
}

// ParseWordList parses an oracle response into a list of words.
//
// Used by the frequency filter's object-word classification. Returns
// ErrMalformedResponse when the payload is not a JSON array of strings.
func ParseWordList(text string) ([]string, error) {
	cleaned := CleanResponse(text)

	var words []string
	if err := json.Unmarshal([]byte(cleaned), &words); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return words, nil
}
