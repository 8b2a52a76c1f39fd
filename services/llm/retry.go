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
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// RetryClient wraps an oracle backend with bounded retries and a request
// rate limit.
//
// Description:
//
//	Every oracle round trip goes through this decorator: up to MaxAttempts
//	calls with a fixed delay between them. Once all attempts are exhausted
//	the call fails with ErrUnavailable and the caller falls back to its
//	previous data. Context cancellation is never retried.
//
// Thread Safety: safe for concurrent use.
type RetryClient struct {
	inner       LLMClient
	maxAttempts int
	delay       time.Duration
	limiter     *rate.Limiter
}

// RetryConfig configures the retry decorator.
type RetryConfig struct {
	// MaxAttempts is the total number of calls before giving up.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// Delay is the fixed wait between attempts.
	Delay time.Duration

	// RequestsPerSecond throttles outbound calls. Zero means unlimited.
	RequestsPerSecond float64
}

// DefaultRetryConfig mirrors the upstream generator's policy: five attempts
// two seconds apart, no throttle.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		Delay:       2 * time.Second,
	}
}

// NewRetryClient wraps inner with the given retry policy.
func NewRetryClient(inner LLMClient, cfg RetryConfig) *RetryClient {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &RetryClient{
		inner:       inner,
		maxAttempts: cfg.MaxAttempts,
		delay:       cfg.Delay,
		limiter:     rate.NewLimiter(limit, 1),
	}
}

// Generate implements the LLMClient interface.
func (r *RetryClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	return r.call(ctx, func() (string, error) {
		return r.inner.Generate(ctx, prompt, params)
	})
}

// GenerateVision implements the LLMClient interface.
func (r *RetryClient) GenerateVision(ctx context.Context, prompt string,
	imagePaths []string, params GenerationParams) (string, error) {
	return r.call(ctx, func() (string, error) {
		return r.inner.GenerateVision(ctx, prompt, imagePaths, params)
	})
}

func (r *RetryClient) call(ctx context.Context, fn func() (string, error)) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(r.delay):
			}
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return "", err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}

		lastErr = err
		slog.Warn("Oracle call failed, retrying",
			"attempt", attempt,
			"max_attempts", r.maxAttempts,
			"error", err.Error(),
		)
	}

	slog.Error("Oracle retries exhausted", "attempts", r.maxAttempts)
	return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// Ensure RetryClient implements LLMClient.
var _ LLMClient = (*RetryClient)(nil)
