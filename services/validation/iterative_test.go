// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoOracle approves every batch verbatim, so the first pass is stable.
func echoOracle() *stubOracle {
	return &stubOracle{
		handler: func(_ int, prompt string) (string, error) {
			return mustJSON(batchFromJudgePrompt(prompt)), nil
		},
	}
}

func threeItemSet() QASet {
	return QASet{
		"frame_0": {
			{Question: "Is there a chair?", Answer: "Yes", Category: "Existence"},
			{Question: "How many lamps are there?", Answer: "2", Category: "Measurement"},
			{Question: "What color is the rug?", Answer: "Red", Category: "Attribute"},
		},
	}
}

func TestIterativeValidatorStableOnFirstPass(t *testing.T) {
	oracle := echoOracle()
	v := NewIterativeValidator(oracle, IterativeConfig{Prompt: "Judge these."}, NewAuditLog(io.Discard))

	in := threeItemSet()
	in["frame_empty"] = []QAItem{}

	out, state, err := v.Run(context.Background(), in, "A small room.")
	require.NoError(t, err)
	assert.Equal(t, LoopStable, state)
	require.Equal(t, in, out, "approving judge must not change the set")
	assert.Equal(t, 1, oracle.callCount(), "one batch, one pass")
}

func TestIterativeValidatorConvergesAfterRejection(t *testing.T) {
	// First call drops the last item, later calls echo: pass 1 shrinks the
	// set, pass 2 confirms it, loop stabilizes with one audit entry.
	oracle := &stubOracle{
		handler: func(call int, prompt string) (string, error) {
			batch := batchFromJudgePrompt(prompt)
			if call == 1 {
				batch = batch[:len(batch)-1]
			}
			return mustJSON(batch), nil
		},
	}

	var auditBuf bytes.Buffer
	v := NewIterativeValidator(oracle, IterativeConfig{Prompt: "Judge these."}, NewAuditLog(&auditBuf))

	out, state, err := v.Run(context.Background(), threeItemSet(), "A small room.")
	require.NoError(t, err)
	assert.Equal(t, LoopStable, state)
	require.Len(t, out["frame_0"], 2)

	audit := auditBuf.String()
	assert.Contains(t, audit, "What color is the rug?")
	assert.Contains(t, audit, ReasonJudgeRejected)
	assert.Equal(t, 1, strings.Count(audit, "Reason:"), "exactly one removal recorded")
}

func TestIterativeValidatorMaxIterations(t *testing.T) {
	// The judge trims one item per call and never settles within the budget.
	oracle := &stubOracle{
		handler: func(_ int, prompt string) (string, error) {
			batch := batchFromJudgePrompt(prompt)
			return mustJSON(batch[:len(batch)-1]), nil
		},
	}
	v := NewIterativeValidator(oracle, IterativeConfig{
		Prompt:        "Judge these.",
		MaxIterations: 2,
	}, NewAuditLog(io.Discard))

	out, state, err := v.Run(context.Background(), threeItemSet(), "A small room.")
	require.NoError(t, err)
	assert.Equal(t, LoopMaxIterations, state)
	require.Len(t, out["frame_0"], 1, "two passes, one item trimmed each")
}

func TestIterativeValidatorUnparseableResponseKeepsFrame(t *testing.T) {
	oracle := &stubOracle{response: "I refuse to answer in JSON."}
	v := NewIterativeValidator(oracle, IterativeConfig{Prompt: "Judge these."}, NewAuditLog(io.Discard))

	in := threeItemSet()
	out, state, err := v.Run(context.Background(), in, "A small room.")
	require.NoError(t, err)
	assert.Equal(t, LoopStable, state)
	require.Equal(t, in, out, "a pass with no usable output must not empty the frame")
}

func TestIterativeValidatorTransportErrorCarriesBatchOver(t *testing.T) {
	oracle := &stubOracle{err: errors.New("connection refused")}
	v := NewIterativeValidator(oracle, IterativeConfig{Prompt: "Judge these."}, NewAuditLog(io.Discard))

	in := threeItemSet()
	out, state, err := v.Run(context.Background(), in, "A small room.")
	require.NoError(t, err, "exhausted retries degrade per batch, not the run")
	assert.Equal(t, LoopStable, state)
	require.Equal(t, in, out)
}

func TestIterativeValidatorBatching(t *testing.T) {
	oracle := echoOracle()
	v := NewIterativeValidator(oracle, IterativeConfig{
		Prompt:    "Judge these.",
		BatchSize: 2,
	}, NewAuditLog(io.Discard))

	_, state, err := v.Run(context.Background(), threeItemSet(), "A small room.")
	require.NoError(t, err)
	assert.Equal(t, LoopStable, state)
	assert.Equal(t, 2, oracle.callCount(), "three items at batch size two is two calls")
}

func TestIterativeValidatorCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	oracle := &stubOracle{err: context.Canceled}
	v := NewIterativeValidator(oracle, IterativeConfig{Prompt: "Judge these."}, NewAuditLog(io.Discard))

	_, _, err := v.Run(ctx, threeItemSet(), "A small room.")
	require.ErrorIs(t, err, context.Canceled)
}

func TestIterativeValidatorCapsSceneDescription(t *testing.T) {
	var sawDescription string
	oracle := &stubOracle{
		handler: func(_ int, prompt string) (string, error) {
			sawDescription = prompt
			return mustJSON(batchFromJudgePrompt(prompt)), nil
		},
	}
	v := NewIterativeValidator(oracle, IterativeConfig{
		Prompt:          "Judge these.",
		MaxContextChars: 100,
	}, NewAuditLog(io.Discard))

	longDescription := strings.Repeat("The room holds many identical shelves. ", 50)
	_, _, err := v.Run(context.Background(), threeItemSet(), longDescription)
	require.NoError(t, err)
	assert.Less(t, len(sawDescription), len(longDescription),
		"oversized description must be truncated before prompting")
}
