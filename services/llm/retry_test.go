// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyBackend struct {
	mu       sync.Mutex
	calls    int
	failures int
	err      error
}

func (f *flakyBackend) Generate(context.Context, string, GenerationParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return "", f.err
	}
	return "ok", nil
}

func (f *flakyBackend) GenerateVision(ctx context.Context, prompt string, _ []string, params GenerationParams) (string, error) {
	return f.Generate(ctx, prompt, params)
}

func (f *flakyBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestRetryClientSucceedsAfterTransientFailures(t *testing.T) {
	backend := &flakyBackend{failures: 2, err: errors.New("connection reset")}
	client := NewRetryClient(backend, RetryConfig{MaxAttempts: 5})

	resp, err := client.Generate(context.Background(), "hello", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, 3, backend.callCount())
}

func TestRetryClientExhaustsAttempts(t *testing.T) {
	cause := errors.New("connection reset")
	backend := &flakyBackend{failures: 100, err: cause}
	client := NewRetryClient(backend, RetryConfig{MaxAttempts: 3})

	_, err := client.Generate(context.Background(), "hello", GenerationParams{})
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 3, backend.callCount())
}

func TestRetryClientDoesNotRetryCancellation(t *testing.T) {
	backend := &flakyBackend{failures: 100, err: context.Canceled}
	client := NewRetryClient(backend, RetryConfig{MaxAttempts: 5})

	_, err := client.Generate(context.Background(), "hello", GenerationParams{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, backend.callCount())
}

func TestRetryClientStopsWaitingOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backend := &flakyBackend{failures: 100, err: errors.New("down")}
	client := NewRetryClient(backend, RetryConfig{MaxAttempts: 5})

	_, err := client.Generate(ctx, "hello", GenerationParams{})
	require.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, backend.callCount(), 1, "no retries once the context is gone")
}

func TestRetryClientClampsAttempts(t *testing.T) {
	backend := &flakyBackend{failures: 100, err: errors.New("down")}
	client := NewRetryClient(backend, RetryConfig{MaxAttempts: 0})

	_, err := client.Generate(context.Background(), "hello", GenerationParams{})
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, backend.callCount())
}

func TestRetryClientVisionPath(t *testing.T) {
	backend := &flakyBackend{failures: 1, err: errors.New("down")}
	client := NewRetryClient(backend, RetryConfig{MaxAttempts: 2})

	resp, err := client.GenerateVision(context.Background(), "hello", []string{"frame.png"}, GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, 2, backend.callCount())
}
