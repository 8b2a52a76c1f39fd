// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.DataDir = "/data/scenes"
	cfg.Prompts = PromptConfig{
		FilterNonObjects: "Pick the physical objects.",
		NeuralValidation: "Judge these questions.",
	}
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{name: "defaults with required fields", mutate: func(*Config) {}, valid: true},
		{name: "unknown backend", mutate: func(c *Config) { c.Backend = "bedrock" }, valid: false},
		{name: "missing data dir", mutate: func(c *Config) { c.DataDir = "" }, valid: false},
		{name: "zero batch size", mutate: func(c *Config) { c.BatchSize = 0 }, valid: false},
		{name: "oversized batch", mutate: func(c *Config) { c.BatchSize = 51 }, valid: false},
		{name: "zero iterations", mutate: func(c *Config) { c.MaxIterations = 0 }, valid: false},
		{name: "negative multiplier", mutate: func(c *Config) { c.FrequencyMultiplier = -1 }, valid: false},
		{name: "tiny context budget", mutate: func(c *Config) { c.MaxContextChars = 50 }, valid: false},
		{name: "missing judge prompt", mutate: func(c *Config) { c.Prompts.NeuralValidation = "" }, valid: false},
		{name: "zero retry delay allowed", mutate: func(c *Config) { c.RetryDelaySeconds = 0 }, valid: true},
		{name: "unlimited request rate allowed", mutate: func(c *Config) { c.RequestsPerSecond = 0 }, valid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "ollama", cfg.Backend)
	assert.Equal(t, 5, cfg.BatchSize)
	assert.Equal(t, 5, cfg.MaxIterations)
	assert.Equal(t, 3.0, cfg.FrequencyMultiplier)
	assert.Equal(t, 5, cfg.RetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay())
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
backend: openai
data_dir: /data/scenes
batch_size: 10
prompts:
  filter_non_objects: "Pick the physical objects."
  neural_validation: "Judge these questions."
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0640))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Backend)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 5, cfg.MaxIterations, "omitted fields keep defaults")
	assert.Equal(t, 8000, cfg.MaxContextChars)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: bedrock\ndata_dir: /data\n"), 0640))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
