// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// SceneDocument is the on-disk shape of a scene's QA set.
//
// The upstream generator produces one of these per scene; the pipeline reads
// it, filters the per-frame qa lists, and writes the same shape back.
type SceneDocument struct {
	SceneName  string           `json:"scene_name"`
	Parameters []FrameParameter `json:"parameters"`
}

// FrameParameter holds the QA items for one frame.
type FrameParameter struct {
	Frame string   `json:"frame"`
	QA    []QAItem `json:"qa"`
}

// DescriptionDocument is the on-disk shape of per-frame scene descriptions.
type DescriptionDocument struct {
	SceneName  string             `json:"scene_name"`
	Parameters []FrameDescription `json:"parameters"`
}

// FrameDescription holds the free-text description of one frame.
type FrameDescription struct {
	Frame       string `json:"frame"`
	Description string `json:"description"`
}

// LoadSceneQA reads a scene QA document and returns its per-frame QA set.
//
// Description:
//
//	Parses the document and validates its structure. A document without the
//	top-level "parameters" key is a schema violation and fails immediately;
//	an empty parameters list is fine and yields an empty set.
//
// Inputs:
//
//	path - Path to the <scene>_questions.json document.
//
// Outputs:
//
//	QASet - Frame id to QA items, preserving each frame's item order.
//	error - ErrMissingParameters on schema violation, or an I/O/decode error.
func LoadSceneQA(path string) (QASet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene qa: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode scene qa: %w", err)
	}
	params, ok := raw["parameters"]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingParameters, path)
	}

	var frames []FrameParameter
	if err := json.Unmarshal(params, &frames); err != nil {
		return nil, fmt.Errorf("decode scene qa parameters: %w", err)
	}

	set := make(QASet, len(frames))
	for _, fp := range frames {
		items := fp.QA
		if items == nil {
			items = []QAItem{}
		}
		set[fp.Frame] = items
	}
	return set, nil
}

// SaveSceneQA writes a QA set back out as a scene document.
//
// Frames are emitted in sorted order so the output is byte-stable for a
// given set. Frames whose items were all filtered away are still written,
// with an empty qa list.
func SaveSceneQA(path, sceneName string, set QASet) error {
	doc := SceneDocument{
		SceneName:  sceneName,
		Parameters: make([]FrameParameter, 0, len(set)),
	}
	for _, frame := range set.Frames() {
		items := set[frame]
		if items == nil {
			items = []QAItem{}
		}
		doc.Parameters = append(doc.Parameters, FrameParameter{Frame: frame, QA: items})
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("encode scene qa: %w", err)
	}
	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("write scene qa: %w", err)
	}
	return nil
}

// LoadSceneDescription reads a descriptions document and concatenates all
// per-frame description fields into the single scene description the
// extractor and the judge prompts consume.
func LoadSceneDescription(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read scene descriptions: %w", err)
	}

	var doc DescriptionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("decode scene descriptions: %w", err)
	}

	parts := make([]string, 0, len(doc.Parameters))
	for _, fd := range doc.Parameters {
		parts = append(parts, fd.Description)
	}
	return strings.Join(parts, " "), nil
}
