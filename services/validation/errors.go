// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import "errors"

// Sentinel errors for the validation pipeline.
//
// Filtering decisions are data, not errors: a removed QA item is recorded in
// the audit log, never raised. Only structural problems surface as errors,
// and of those only ErrMissingParameters is fatal to a run.
var (
	// ErrMissingParameters indicates the scene document lacks the required
	// top-level "parameters" key. No meaningful processing can proceed.
	ErrMissingParameters = errors.New("scene document missing parameters")

	// ErrMalformedResponse indicates an oracle response could not be parsed
	// as the expected JSON shape. Recovered per batch, never fatal.
	ErrMalformedResponse = errors.New("malformed oracle response")
)
