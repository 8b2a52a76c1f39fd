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
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/AleutianAI/AleutianVQA/services/llm"
	"github.com/tmc/langchaingo/textsplitter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// LoopState represents a state of the iterative validation loop.
//
// The loop starts in LoopRunning, moves to LoopStable when a full pass
// leaves the aggregate (question, answer) set unchanged, and to
// LoopMaxIterations when the pass budget runs out first. Both are terminal;
// reaching the cap is not an error and the last computed set is accepted.
type LoopState string

const (
	// LoopRunning is the initial and only non-terminal state.
	LoopRunning LoopState = "RUNNING"

	// LoopStable means a full pass produced no set change.
	LoopStable LoopState = "STABLE"

	// LoopMaxIterations means the pass budget was exhausted without
	// stabilizing.
	LoopMaxIterations LoopState = "MAX_ITERATIONS"
)

// ReasonJudgeRejected is the audit reason for items the judging oracle
// dropped or rewrote during a validation pass.
const ReasonJudgeRejected = "judge rejected"

// frameWorkers bounds the parallel per-frame judge calls in one pass.
const frameWorkers = 4

// IterativeValidator repeatedly submits each frame's QA items to the
// judging oracle until the result set stabilizes or the iteration budget is
// exhausted.
//
// Description:
//
//	Per pass, per frame: the current items are cut into fixed-size batches
//	and each batch is sent with the scene description (and the frame image
//	when available) to the oracle. The response is parsed as a QA array;
//	entries missing required keys are discarded. A batch whose oracle call
//	fails outright is carried over unchanged, and a frame whose whole pass
//	yields zero usable items keeps its previous items verbatim — a single
//	failed pass never empties a frame.
//
//	Frames within a pass are judged in parallel; each worker writes only
//	its own frame's slot, so the pass result is deterministic for
//	deterministic oracle output.
//
// Thread Safety: safe for concurrent use with distinct QASets.
type IterativeValidator struct {
	oracle        llm.LLMClient
	prompt        string
	batchSize     int
	maxIterations int
	imageDir      string
	audit         *AuditLog
	splitter      textsplitter.RecursiveCharacter
}

// IterativeConfig carries the loop's tunables out of the pipeline Config.
type IterativeConfig struct {
	Prompt          string
	BatchSize       int
	MaxIterations   int
	MaxContextChars int

	// ImageDir maps frame ids to image files; empty disables vision.
	ImageDir string
}

// NewIterativeValidator builds the loop runner.
func NewIterativeValidator(oracle llm.LLMClient, cfg IterativeConfig, audit *AuditLog) *IterativeValidator {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 5
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = 5
	}
	if cfg.MaxContextChars < 1 {
		cfg.MaxContextChars = 8000
	}
	return &IterativeValidator{
		oracle:        oracle,
		prompt:        cfg.Prompt,
		batchSize:     cfg.BatchSize,
		maxIterations: cfg.MaxIterations,
		imageDir:      cfg.ImageDir,
		audit:         audit,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.MaxContextChars),
			textsplitter.WithChunkOverlap(0),
		),
	}
}

// Run executes judge passes until stable or out of budget.
//
// Inputs:
//
//	ctx - Cancellation context, checked between frames and passes.
//	set - Input QA set. Not mutated.
//	sceneDescription - Scene text included in every judge prompt; overly
//	                   long descriptions are trimmed to the first chunk.
//
// Outputs:
//
//	QASet - The last accepted set, same frame keys as the input.
//	LoopState - LoopStable or LoopMaxIterations.
//	error - Only context cancellation; oracle trouble degrades per batch.
func (v *IterativeValidator) Run(ctx context.Context, set QASet, sceneDescription string) (QASet, LoopState, error) {
	ctx, span := otel.Tracer("aleutian.vqa.validation").Start(ctx, "IterativeValidator.Run")
	defer span.End()

	sceneDescription = v.capContext(sceneDescription)

	current := set.Clone()
	state := LoopRunning

	for pass := 1; pass <= v.maxIterations; pass++ {
		slog.Info("Judge validation pass", "pass", pass, "max_passes", v.maxIterations)

		updated, err := v.runPass(ctx, current, sceneDescription)
		if err != nil {
			return nil, state, err
		}
		judgeIterationsTotal.Inc()
		v.recordDropped(current, updated)

		before := current.pairSet()
		after := updated.pairSet()
		slog.Info("Judge pass finished",
			"pass", pass,
			"items_before", current.Len(),
			"items_after", updated.Len(),
		)

		current = updated
		if samePairs(before, after) {
			state = LoopStable
			break
		}
	}
	if state == LoopRunning {
		state = LoopMaxIterations
	}

	span.SetAttributes(attribute.String("loop_state", string(state)))
	return current, state, nil
}

// runPass judges every frame once and assembles the pass result.
func (v *IterativeValidator) runPass(ctx context.Context, current QASet, sceneDescription string) (QASet, error) {
	frames := current.Frames()
	updated := make(QASet, len(frames))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(frameWorkers)

	for _, frame := range frames {
		g.Go(func() error {
			items, err := v.judgeFrame(gctx, frame, current[frame], sceneDescription)
			if err != nil {
				return err
			}
			mu.Lock()
			updated[frame] = items
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return updated, nil
}

// judgeFrame submits one frame's items in batches and collects the usable
// judge output. Returns the previous items when the whole frame yields
// nothing usable.
func (v *IterativeValidator) judgeFrame(ctx context.Context, frame string, items []QAItem, sceneDescription string) ([]QAItem, error) {
	validated := make([]QAItem, 0, len(items))

	for start := 0; start < len(items); start += v.batchSize {
		end := min(start+v.batchSize, len(items))
		batch := items[start:end]

		resp, err := v.judgeBatch(ctx, frame, batch, sceneDescription)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			// Retries exhausted: the batch survives unchanged rather
			// than being silently dropped.
			slog.Warn("Judge batch unavailable, carrying batch over",
				"frame", frame, "batch_start", start, "error", err)
			oracleFallbacksTotal.WithLabelValues("judge_batch").Inc()
			validated = append(validated, batch...)
			continue
		}

		parsed, err := ParseQABatch(resp)
		if err != nil {
			slog.Warn("Judge response unparseable, discarding batch response",
				"frame", frame, "batch_start", start, "error", err)
			continue
		}
		validated = append(validated, parsed...)
	}

	if len(validated) == 0 && len(items) > 0 {
		slog.Warn("Judge pass yielded nothing usable for frame, keeping previous items", "frame", frame)
		previous := make([]QAItem, len(items))
		copy(previous, items)
		return previous, nil
	}
	return validated, nil
}

// judgeBatch builds the full judge prompt for one batch and calls the
// oracle, vision-grounded when an image directory is configured.
func (v *IterativeValidator) judgeBatch(ctx context.Context, frame string, batch []QAItem, sceneDescription string) (string, error) {
	batchJSON, err := json.Marshal(batch)
	if err != nil {
		return "", fmt.Errorf("marshal judge batch: %w", err)
	}

	prompt := fmt.Sprintf(
		"%s\n\nScene description:\n%s\n\nData:\n%s\n\nWRITE A JSON FORMAT WITH LIST [] ON TOP LEVEL",
		v.prompt, sceneDescription, batchJSON,
	)

	if v.imageDir != "" {
		imagePath := filepath.Join(v.imageDir, frame)
		return v.oracle.GenerateVision(ctx, prompt, []string{imagePath}, llm.GenerationParams{})
	}
	return v.oracle.Generate(ctx, prompt, llm.GenerationParams{})
}

// recordDropped audits the items a pass removed from each frame.
func (v *IterativeValidator) recordDropped(before, after QASet) {
	for _, frame := range before.Frames() {
		kept := make(map[qaPair]struct{}, len(after[frame]))
		for _, item := range after[frame] {
			kept[qaPair{item.Question, item.Answer}] = struct{}{}
		}
		for _, item := range before[frame] {
			if _, ok := kept[qaPair{item.Question, item.Answer}]; !ok {
				v.audit.Record(LogEntry{Frame: frame, Question: item.Question, Reason: ReasonJudgeRejected})
				removalsTotal.WithLabelValues(ReasonJudgeRejected).Inc()
			}
		}
	}
}

// capContext trims the scene description to the splitter's first chunk when
// it exceeds the context budget.
func (v *IterativeValidator) capContext(sceneDescription string) string {
	chunks, err := v.splitter.SplitText(sceneDescription)
	if err != nil || len(chunks) == 0 {
		return sceneDescription
	}
	if len(chunks) > 1 {
		slog.Warn("Scene description exceeds context budget, truncating",
			"chunks", len(chunks))
	}
	return chunks[0]
}
