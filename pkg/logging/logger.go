// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging provides structured logging for flow-core components.
//
// The package is a thin layer over the standard library slog: stderr
// text output by default for operator friendliness, with optional JSON
// file output for ingestion by log shippers.
//
// Basic usage:
//
//	logger := logging.Default()
//	logger.Info("graph stored", "graph_id", graphID)
//
// With file output:
//
//	logger, err := logging.New(logging.Config{
//	    Level:   slog.LevelInfo,
//	    LogDir:  "/var/log/flowcore",
//	    Service: "flowcore",
//	})
//	defer logger.Close()
//
// This package does not redact sensitive data; callers must keep
// credentials and tokens out of log attributes.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Config controls logger construction.
type Config struct {
	// Level is the minimum severity to emit.
	Level slog.Level

	// JSON switches the stderr handler from text to JSON.
	JSON bool

	// LogDir, when set, additionally writes JSON logs to
	// {LogDir}/{Service}_{date}.log. The directory is created if absent.
	LogDir string

	// Service names the emitting component in file names and as the
	// "service" attribute on every record.
	Service string
}

// Logger wraps slog.Logger with ownership of the optional log file.
type Logger struct {
	*slog.Logger
	file *os.File
}

// Default returns a text logger to stderr at Info level.
func Default() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &Logger{Logger: slog.New(handler)}
}

// New builds a logger from the config. With LogDir set, records go to
// both stderr and a dated JSON file.
func New(cfg Config) (*Logger, error) {
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var stderrHandler slog.Handler
	if cfg.JSON {
		stderrHandler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		stderrHandler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := &Logger{}
	handler := stderrHandler
	if cfg.LogDir != "" {
		file, err := openLogFile(cfg.LogDir, cfg.Service)
		if err != nil {
			return nil, err
		}
		logger.file = file
		handler = newTeeHandler(stderrHandler, slog.NewJSONHandler(file, opts))
	}

	logger.Logger = slog.New(handler)
	if cfg.Service != "" {
		logger.Logger = logger.Logger.With("service", cfg.Service)
	}
	return logger, nil
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}

func openLogFile(dir, service string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("logging: create log dir: %w", err)
	}
	if service == "" {
		service = "flowcore"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	return file, nil
}

// Discard returns a logger that drops everything. Intended for tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}
