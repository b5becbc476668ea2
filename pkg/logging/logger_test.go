// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FileOutput(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{
		Level:   slog.LevelInfo,
		LogDir:  dir,
		Service: "flowcore-test",
	})
	require.NoError(t, err)

	logger.Info("graph stored", "graph_id", "orders")
	require.NoError(t, logger.Close())

	name := "flowcore-test_" + time.Now().Format("2006-01-02") + ".log"
	raw, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)

	content := string(raw)
	assert.Contains(t, content, `"msg":"graph stored"`)
	assert.Contains(t, content, `"graph_id":"orders"`)
	assert.Contains(t, content, `"service":"flowcore-test"`)
}

func TestNew_LevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{
		Level:   slog.LevelWarn,
		LogDir:  dir,
		Service: "svc",
	})
	require.NoError(t, err)

	logger.Info("quiet")
	logger.Warn("loud")
	require.NoError(t, logger.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	raw, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "quiet")
	assert.Contains(t, string(raw), "loud")
}

func TestNew_CreatesLogDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	logger, err := New(Config{Level: slog.LevelInfo, LogDir: dir, Service: "svc"})
	require.NoError(t, err)
	defer logger.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestClose_WithoutFile(t *testing.T) {
	logger, err := New(Config{Level: slog.LevelInfo})
	require.NoError(t, err)
	assert.NoError(t, logger.Close())
}

func TestDefault_DoesNotPanic(t *testing.T) {
	logger := Default()
	logger.Info("hello", "k", "v")
}

func TestDiscard_DropsEverything(t *testing.T) {
	logger := Discard()
	logger.Error("nobody hears this", "k", strings.Repeat("x", 10))
	assert.NoError(t, logger.Close())
}
