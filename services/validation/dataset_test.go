// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0640))
	return path
}

func TestLoadSceneQA(t *testing.T) {
	path := writeFixture(t, "kitchen_questions.json", `{
		"scene_name": "kitchen",
		"parameters": [
			{
				"frame": "frame_0001.png",
				"qa": [
					{"question": "Is there a chair?", "answer": "Yes", "category": "Existence"},
					{"question": "How many chairs are there?", "answer": "3", "category": "Measurement"}
				]
			},
			{"frame": "frame_0002.png", "qa": []}
		]
	}`)

	set, err := LoadSceneQA(path)
	require.NoError(t, err)
	require.Len(t, set, 2)
	require.Len(t, set["frame_0001.png"], 2)
	assert.Equal(t, "Is there a chair?", set["frame_0001.png"][0].Question)
	assert.NotNil(t, set["frame_0002.png"])
	assert.Empty(t, set["frame_0002.png"])
}

func TestLoadSceneQAMissingParameters(t *testing.T) {
	path := writeFixture(t, "broken_questions.json", `{"scene_name": "kitchen"}`)

	_, err := LoadSceneQA(path)
	require.ErrorIs(t, err, ErrMissingParameters)
}

func TestLoadSceneQAEmptyParameters(t *testing.T) {
	path := writeFixture(t, "empty_questions.json", `{"scene_name": "kitchen", "parameters": []}`)

	set, err := LoadSceneQA(path)
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestLoadSceneQABadJSON(t *testing.T) {
	path := writeFixture(t, "garbage_questions.json", "not json at all")

	_, err := LoadSceneQA(path)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMissingParameters), "decode failure is not a schema violation")
}

func TestSaveSceneQARoundTrip(t *testing.T) {
	set := QASet{
		"frame_0002.png": {{Question: "Is there a table?", Answer: "No", Category: "Existence"}},
		"frame_0001.png": {},
	}

	path := filepath.Join(t.TempDir(), "kitchen_validated_questions.json")
	require.NoError(t, SaveSceneQA(path, "kitchen", set))

	loaded, err := LoadSceneQA(path)
	require.NoError(t, err)
	require.Equal(t, set, loaded, "filtered-empty frames survive the round trip")

	raw := readFileT(t, path)
	assert.Less(t, strings.Index(raw, "frame_0001"), strings.Index(raw, "frame_0002"),
		"frames written in sorted order")
	assert.Contains(t, raw, `"scene_name": "kitchen"`)
}

func TestLoadSceneDescription(t *testing.T) {
	path := writeFixture(t, "kitchen_descriptions.json", `{
		"scene_name": "kitchen",
		"parameters": [
			{"frame": "frame_0001.png", "description": "A kitchen with 3 chairs."},
			{"frame": "frame_0002.png", "description": "A table by the window."}
		]
	}`)

	desc, err := LoadSceneDescription(path)
	require.NoError(t, err)
	assert.Equal(t, "A kitchen with 3 chairs. A table by the window.", desc)
}

func TestLoadSceneDescriptionMissingFile(t *testing.T) {
	_, err := LoadSceneDescription(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
