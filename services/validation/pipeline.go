// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"context"
	"log/slog"

	"github.com/AleutianAI/AleutianVQA/services/llm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Pipeline runs the full validation sequence over one scene's QA set:
//
//	FrequencyFilter -> ConflictResolver -> IterativeValidator ->
//	MeasurementCrossValidator
//
// Scene counts are extracted once up front and feed the frequency filter's
// classification context and the measurement cross-check. Each stage
// receives the previous stage's complete output; a cancelled context aborts
// between stages, never mid-set, so callers only ever observe whole QASets.
type Pipeline struct {
	cfg    Config
	oracle llm.LLMClient
	audit  *AuditLog
}

// NewPipeline assembles the pipeline.
//
// Inputs:
//
//	cfg - Validated configuration (see Config.Validate).
//	oracle - Oracle backend; wrapped here with the configured retry
//	         policy, so pass the bare client.
//	audit - Shared removal log. Must not be nil.
func NewPipeline(cfg Config, oracle llm.LLMClient, audit *AuditLog) *Pipeline {
	wrapped := llm.NewRetryClient(oracle, llm.RetryConfig{
		MaxAttempts:       cfg.RetryAttempts,
		Delay:             cfg.RetryDelay(),
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	return &Pipeline{cfg: cfg, oracle: wrapped, audit: audit}
}

// Run validates one scene's QA set.
//
// Inputs:
//
//	ctx - Cancellation context, honored between stages and inside the
//	      oracle-backed stages.
//	set - The raw per-frame QA set.
//	sceneDescription - Concatenated scene description text.
//	imageDir - Directory of frame images for the judge, empty to disable.
//
// Outputs:
//
//	QASet - The validated set, same frame keys as the input.
//	error - Context cancellation only; all oracle failures degrade to
//	        stage- or batch-level fallbacks.
func (p *Pipeline) Run(ctx context.Context, set QASet, sceneDescription, imageDir string) (QASet, error) {
	ctx, span := otel.Tracer("aleutian.vqa.validation").Start(ctx, "Pipeline.Run")
	defer span.End()
	span.SetAttributes(
		attribute.Int("frames", len(set)),
		attribute.Int("items_in", set.Len()),
	)

	counts := BuildSceneCounts(sceneDescription)
	slog.Info("Scene inventory extracted", "objects", len(counts))

	frequency := NewFrequencyFilter(p.oracle, p.cfg.Prompts.FilterNonObjects, p.cfg.FrequencyMultiplier, p.audit)
	filtered, err := frequency.Run(ctx, set, counts)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filtered = NewConflictResolver(p.audit).Run(filtered)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	judge := NewIterativeValidator(p.oracle, IterativeConfig{
		Prompt:          p.cfg.Prompts.NeuralValidation,
		BatchSize:       p.cfg.BatchSize,
		MaxIterations:   p.cfg.MaxIterations,
		MaxContextChars: p.cfg.MaxContextChars,
		ImageDir:        imageDir,
	}, p.audit)
	filtered, state, err := judge.Run(ctx, filtered, sceneDescription)
	if err != nil {
		return nil, err
	}
	slog.Info("Judge loop finished", "state", string(state))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filtered = NewMeasurementCrossValidator(counts, p.audit).Run(filtered)

	span.SetAttributes(attribute.Int("items_out", filtered.Len()))
	return filtered, nil
}
