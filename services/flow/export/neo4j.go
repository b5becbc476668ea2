// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/flow-core/services/flow/graph"
	"github.com/AleutianAI/flow-core/services/flow/store"
	"github.com/AleutianAI/flow-core/services/flow/telemetry"
)

// ErrDisabled indicates the analytics push is switched off in config.
var ErrDisabled = errors.New("export: analytics push disabled")

// WriterConfig configures the Neo4j writer.
type WriterConfig struct {
	Enabled  bool
	URI      string
	Username string
	Password string

	// Timeout bounds a single push, deletion included.
	Timeout time.Duration
}

// Result summarizes one completed push.
type Result struct {
	GraphID    string        `json:"graphId"`
	Statements int           `json:"statements"`
	Duration   time.Duration `json:"duration"`
}

// Writer pushes graph snapshots to a Neo4j instance.
//
// Pushes replace: the graph's previous nodes and edges are deleted in
// the same transaction before the fresh snapshot is written. Concurrent
// pushes of the same graph collapse onto one in-flight operation, so a
// burst of merge completions costs a single round trip.
type Writer struct {
	driver  neo4j.DriverWithContext
	cfg     WriterConfig
	group   singleflight.Group
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// NewWriter connects to Neo4j and verifies reachability. With Enabled
// false it returns a writer whose Push always reports ErrDisabled, so
// callers need no separate nil checks.
func NewWriter(ctx context.Context, cfg WriterConfig, metrics *telemetry.Metrics, logger *slog.Logger) (*Writer, error) {
	w := &Writer{cfg: cfg, metrics: metrics, logger: logger}
	if !cfg.Enabled {
		return w, nil
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("export: create driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("export: verify connectivity: %w", err)
	}
	w.driver = driver
	logger.Info("analytics writer connected", "uri", cfg.URI)
	return w, nil
}

// Enabled reports whether pushes are switched on.
func (w *Writer) Enabled() bool { return w.cfg.Enabled }

// Push writes the graph snapshot to Neo4j, replacing any prior push of
// the same graph ID. Duplicate concurrent pushes share one result.
func (w *Writer) Push(ctx context.Context, meta store.Metadata, g *graph.Graph) (Result, error) {
	if !w.cfg.Enabled {
		return Result{}, ErrDisabled
	}

	v, err, _ := w.group.Do(meta.GraphID, func() (any, error) {
		return w.push(ctx, meta, g)
	})
	if err != nil {
		w.metrics.ExportsFailed.Add(ctx, 1)
		return Result{}, err
	}
	w.metrics.ExportsCompleted.Add(ctx, 1)
	return v.(Result), nil
}

func (w *Writer) push(ctx context.Context, meta store.Metadata, g *graph.Graph) (Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "flow.export", "Writer.Push")
	defer span.End()

	if w.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	stmts := BuildStatements(meta, g)

	session := w.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() { _ = session.Close(ctx) }()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx,
			"MATCH (n:FlowNode {graphId: $graphId}) DETACH DELETE n",
			map[string]any{"graphId": meta.GraphID})
		if err != nil {
			return nil, err
		}
		for _, stmt := range stmts {
			if _, err := tx.Run(ctx, stmt, nil); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return Result{}, fmt.Errorf("export: push graph %q: %w", meta.GraphID, err)
	}

	result := Result{
		GraphID:    meta.GraphID,
		Statements: len(stmts),
		Duration:   time.Since(start),
	}
	w.logger.Info("graph pushed to analytics",
		"graph_id", meta.GraphID,
		"statements", result.Statements,
		"duration", result.Duration)
	return result, nil
}

// Close releases the driver. Safe to call on a disabled writer.
func (w *Writer) Close(ctx context.Context) error {
	if w.driver == nil {
		return nil
	}
	return w.driver.Close(ctx)
}
