// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import "fmt"

// NewClient builds the oracle backend named in the configuration.
//
// Supported backends: "ollama", "openai". Credentials and model names come
// from the backend's own environment variables.
func NewClient(backend string) (LLMClient, error) {
	switch backend {
	case "ollama":
		return NewOllamaClient()
	case "openai":
		return NewOpenAIClient()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
