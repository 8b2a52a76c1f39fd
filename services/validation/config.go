// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config enumerates every tunable of the validation pipeline.
//
// The upstream generator carried these as ad hoc dictionaries; here they are
// a single validated structure with explicit defaults.
type Config struct {
	// Backend names the oracle implementation ("ollama" or "openai").
	Backend string `yaml:"backend" validate:"required,oneof=ollama openai"`

	// DataDir is the root directory holding per-scene folders.
	DataDir string `yaml:"data_dir" validate:"required"`

	// ImageDir optionally maps frame ids to image files relative to the
	// scene folder. Empty disables vision grounding.
	ImageDir string `yaml:"image_dir"`

	// BatchSize is the number of QA items sent to the judge per call.
	BatchSize int `yaml:"batch_size" validate:"min=1,max=50"`

	// MaxIterations caps the judge loop's full passes.
	MaxIterations int `yaml:"max_iterations" validate:"min=1"`

	// FrequencyMultiplier scales the median to the overuse threshold.
	FrequencyMultiplier float64 `yaml:"frequency_multiplier" validate:"gt=0"`

	// MaxContextChars caps the scene description included in judge
	// prompts; longer descriptions are split and the first chunk used.
	MaxContextChars int `yaml:"max_context_chars" validate:"min=100"`

	// RetryAttempts is the total oracle attempts per call.
	RetryAttempts int `yaml:"retry_attempts" validate:"min=1"`

	// RetryDelaySeconds is the fixed wait between oracle attempts.
	RetryDelaySeconds int `yaml:"retry_delay_seconds" validate:"min=0"`

	// RequestsPerSecond throttles oracle calls. Zero means unlimited.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"min=0"`

	// Prompts holds the oracle prompt templates.
	Prompts PromptConfig `yaml:"prompts"`
}

// PromptConfig holds the prompt text for each oracle-backed stage.
type PromptConfig struct {
	// FilterNonObjects asks the oracle to pick physical-object words out
	// of a JSON word list.
	FilterNonObjects string `yaml:"filter_non_objects" validate:"required"`

	// NeuralValidation asks the oracle to confirm, correct, or drop the
	// QA items in a batch.
	NeuralValidation string `yaml:"neural_validation" validate:"required"`
}

// DefaultConfig returns a Config with the pipeline's standard settings.
// Prompts and DataDir must still be supplied.
func DefaultConfig() Config {
	return Config{
		Backend:             "ollama",
		BatchSize:           5,
		MaxIterations:       5,
		FrequencyMultiplier: 3,
		MaxContextChars:     8000,
		RetryAttempts:       5,
		RetryDelaySeconds:   2,
	}
}

// RetryDelay returns the configured inter-attempt wait as a duration.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// Validate checks the configuration against its constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid validation config: %w", err)
	}
	return nil
}

// LoadConfig reads a YAML config file, applies defaults for omitted fields,
// and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
