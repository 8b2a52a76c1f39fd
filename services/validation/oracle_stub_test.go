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
	"strings"
	"sync"

	"github.com/AleutianAI/AleutianVQA/services/llm"
)

// stubOracle is a scriptable in-memory oracle. Frames are judged in
// parallel, so all state is mutex-guarded.
type stubOracle struct {
	mu    sync.Mutex
	calls int

	// handler computes the response; when nil, response/err are returned
	// as-is for every call.
	handler  func(call int, prompt string) (string, error)
	response string
	err      error
}

func (s *stubOracle) Generate(_ context.Context, prompt string, _ llm.GenerationParams) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.handler != nil {
		return s.handler(s.calls, prompt)
	}
	return s.response, s.err
}

func (s *stubOracle) GenerateVision(ctx context.Context, prompt string, _ []string, params llm.GenerationParams) (string, error) {
	return s.Generate(ctx, prompt, params)
}

func (s *stubOracle) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// batchFromJudgePrompt recovers the QA batch embedded in a judge prompt, so
// stubs can echo or edit what they were sent.
func batchFromJudgePrompt(prompt string) []QAItem {
	_, after, ok := strings.Cut(prompt, "Data:\n")
	if !ok {
		return nil
	}
	payload, _, ok := strings.Cut(after, "\n\nWRITE")
	if !ok {
		return nil
	}
	var batch []QAItem
	if err := json.Unmarshal([]byte(payload), &batch); err != nil {
		return nil
	}
	return batch
}

// mustJSON marshals test fixtures, panicking on impossible failures.
func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
