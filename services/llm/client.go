// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides the oracle backends the validation pipeline judges
// against: text-only generation for word classification and vision-grounded
// generation for per-frame QA validation.
package llm

import "context"

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// LLMClient defines the standard interface for any oracle backend.
type LLMClient interface {
	// Generate produces a completion for a text-only prompt.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// GenerateVision produces a completion for a prompt grounded on the
	// given image files. Backends without vision support may ignore the
	// images rather than fail; the pipeline treats frame images as
	// optional context.
	GenerateVision(ctx context.Context, prompt string, imagePaths []string, params GenerationParams) (string, error)
}
