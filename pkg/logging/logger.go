// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for the VQA validation tools.
//
// Built on the standard library slog package, with stderr output by default
// (Unix CLI convention) and optional JSON file logging for machine
// processing. Library packages log through slog directly; this package owns
// handler setup so binaries configure destinations in one place.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Config configures logger setup. The zero value logs Info and above to
// stderr as human-readable text.
type Config struct {
	// Level is the minimum level; messages below it are discarded.
	Level slog.Level

	// LogDir enables file logging to "{Service}_{YYYY-MM-DD}.log" in the
	// directory, created with 0750 if missing. Supports ~ expansion.
	// File logs are always JSON. Empty disables file logging.
	LogDir string

	// Service is attached to every entry as the "service" attribute.
	Service string

	// JSON switches stderr output to JSON format.
	JSON bool

	// Quiet disables stderr output entirely.
	Quiet bool
}

// Setup builds a logger per the config and installs it as the slog default.
//
// Description:
//
//	Returns the logger and a close function that syncs and closes the log
//	file when file logging is enabled. The close function is never nil.
//
// Outputs:
//
//	*slog.Logger - The configured logger, also set as slog default.
//	func() error - Cleanup; call on shutdown.
func Setup(config Config) (*slog.Logger, func() error) {
	opts := &slog.HandlerOptions{Level: config.Level}

	var handlers []slog.Handler
	if !config.Quiet {
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}

	closeFn := func() error { return nil }
	if config.LogDir != "" {
		logDir := expandPath(config.LogDir)
		if err := os.MkdirAll(logDir, 0750); err == nil {
			service := config.Service
			if service == "" {
				service = "vqa"
			}
			filename := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
			file, err := os.OpenFile(filepath.Join(logDir, filename),
				os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
			if err == nil {
				handlers = append(handlers, slog.NewJSONHandler(file, opts))
				closeFn = func() error {
					if err := file.Sync(); err != nil {
						return fmt.Errorf("sync log file: %w", err)
					}
					return file.Close()
				}
			}
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(os.Stderr, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closeFn
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
