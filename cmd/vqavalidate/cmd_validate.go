// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/AleutianAI/AleutianVQA/pkg/logging"
	"github.com/AleutianAI/AleutianVQA/services/llm"
	"github.com/AleutianAI/AleutianVQA/services/validation"
	"github.com/spf13/cobra"
)

var (
	configPath string
	sceneName  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "vqavalidate",
	Short: "Validate and deduplicate generated scene QA sets",
	Long: `vqavalidate cleans a machine-generated visual QA set before it is
accepted as benchmark ground truth: it filters over-represented objects,
resolves duplicate and conflicting answers, re-judges every frame's items
against the scene with an oracle model, and cross-checks counting answers
against the scene description.`,
	RunE: runValidate,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "config.yaml", "Path to the YAML config")
	rootCmd.Flags().StringVar(&sceneName, "scene", "", "Name of the scene folder")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	_ = rootCmd.MarkFlagRequired("scene")
}

func runValidate(cmd *cobra.Command, args []string) error {
	logCfg := logging.Config{Service: "vqavalidate"}
	if verbose {
		logCfg.Level = slog.LevelDebug
	}
	logger, closeLog := logging.Setup(logCfg)
	defer func() { _ = closeLog() }()

	cfg, err := validation.LoadConfig(configPath)
	if err != nil {
		return err
	}

	sceneDir := filepath.Join(cfg.DataDir, sceneName)
	vqaDir := filepath.Join(sceneDir, "vqa")
	qaPath := filepath.Join(vqaDir, sceneName+"_questions.json")
	descPath := filepath.Join(vqaDir, sceneName+"_descriptions.json")
	outPath := filepath.Join(vqaDir, sceneName+"_validated_questions.json")

	set, err := validation.LoadSceneQA(qaPath)
	if err != nil {
		return fmt.Errorf("load scene qa (run qa generation first?): %w", err)
	}
	sceneDescription, err := validation.LoadSceneDescription(descPath)
	if err != nil {
		return fmt.Errorf("load scene descriptions (run description generation first?): %w", err)
	}

	oracle, err := llm.NewClient(cfg.Backend)
	if err != nil {
		return err
	}

	audit, auditFile, err := validation.OpenAuditLog(filepath.Join(vqaDir, "removed_questions.log"))
	if err != nil {
		return err
	}
	defer func() { _ = auditFile.Close() }()

	imageDir := ""
	if cfg.ImageDir != "" {
		imageDir = filepath.Join(sceneDir, cfg.ImageDir)
	}

	logger.Info("Validating scene QA",
		"scene", sceneName,
		"frames", len(set),
		"items", set.Len(),
		"run_id", audit.RunID(),
	)

	pipeline := validation.NewPipeline(cfg, oracle, audit)
	validated, err := pipeline.Run(cmd.Context(), set, sceneDescription, imageDir)
	if err != nil {
		return err
	}

	if err := validation.SaveSceneQA(outPath, sceneName, validated); err != nil {
		return err
	}
	slog.Info("Validation complete", "output", outPath, "items", validated.Len())
	return nil
}
