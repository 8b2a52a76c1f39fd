// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import "errors"

var (
	// ErrUnavailable indicates every retry attempt against the oracle was
	// exhausted. Callers fall back to their previous data; this is never
	// fatal to a pipeline run.
	ErrUnavailable = errors.New("oracle unavailable after retries")

	// ErrUnknownBackend indicates an unrecognized backend name in the
	// configuration.
	ErrUnknownBackend = errors.New("unknown oracle backend")
)
