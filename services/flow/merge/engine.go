// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package merge folds completed runtime traces into their graphs.
//
// A merge is a pure transformation: read one graph snapshot and one
// trace snapshot, apply the staged pipeline to a clone, and commit the
// result back to the store with an optimistic sequence check. Nothing in
// the pipeline performs I/O, so merges are short and safe to run from
// any goroutine.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/flow-core/services/flow/graph"
	"github.com/AleutianAI/flow-core/services/flow/runtime"
	"github.com/AleutianAI/flow-core/services/flow/store"
	"github.com/AleutianAI/flow-core/services/flow/telemetry"
)

// maxAttempts bounds the optimistic retry loop. After exhaustion the
// merge is dropped with ErrConflict; the trace stays pending in the
// buffer and may be retried.
const maxAttempts = 3

// Sentinel errors for merge outcomes.
var (
	// ErrGraphNotFound indicates no stored graph for the graph ID.
	ErrGraphNotFound = errors.New("merge: graph not found")

	// ErrTraceNotFound indicates no buffered trace for the trace ID.
	ErrTraceNotFound = errors.New("merge: trace not found")

	// ErrConflict indicates the optimistic retry budget was exhausted.
	ErrConflict = errors.New("merge: conflict retries exhausted")

	// ErrInvalidResult indicates the validator rejected the merged
	// graph; the merge was discarded.
	ErrInvalidResult = errors.New("merge: result failed validation")
)

// Engine coordinates merging of runtime traces into static graphs.
type Engine struct {
	store   *store.Store
	buffer  *runtime.Buffer
	metrics *telemetry.Metrics
	logger  *slog.Logger

	// strict toggles the validator's strict mode on merge results.
	strict bool
}

// NewEngine creates a merge engine over the given store and buffer.
func NewEngine(s *store.Store, b *runtime.Buffer, metrics *telemetry.Metrics, logger *slog.Logger, strict bool) *Engine {
	return &Engine{
		store:   s,
		buffer:  b,
		metrics: metrics,
		logger:  logger,
		strict:  strict,
	}
}

// MergeTrace folds one trace into its graph.
//
// The commit is optimistic: if the store's entry moved past the sequence
// the merge snapshot was taken at, the merge re-runs on the newer
// snapshot, up to maxAttempts times. A graph deleted mid-merge makes the
// merge a no-op, per the store contract.
func (e *Engine) MergeTrace(ctx context.Context, traceID, graphID string) error {
	ctx, span := telemetry.StartSpan(ctx, "flow.merge", "Engine.MergeTrace",
		trace.WithAttributes(
			attribute.String("trace_id", traceID),
			attribute.String("graph_id", graphID),
		),
	)
	defer span.End()

	start := time.Now()
	err := e.mergeWithRetry(ctx, traceID, graphID)
	e.metrics.MergeDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		telemetry.RecordError(span, err)
		e.metrics.MergesFailed.Add(ctx, 1)
		return err
	}
	e.metrics.MergesCompleted.Add(ctx, 1)
	e.logger.Info("merge completed", "trace_id", traceID, "graph_id", graphID)
	return nil
}

func (e *Engine) mergeWithRetry(ctx context.Context, traceID, graphID string) error {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		base, seq, ok := e.store.GetForMerge(graphID)
		if !ok {
			return fmt.Errorf("%w: %q", ErrGraphNotFound, graphID)
		}
		tr, ok := e.buffer.Get(traceID)
		if !ok {
			return fmt.Errorf("%w: %q", ErrTraceNotFound, traceID)
		}

		if base.HasMergedTrace(traceID) {
			// Already folded in, e.g. by a rescheduled merge. Converge
			// the buffer flag and stop.
			e.buffer.MarkMerged(traceID)
			return nil
		}

		merged := Apply(base, tr)
		if err := graph.Validate(merged, e.strict); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidResult, err)
		}

		switch err := e.store.UpdateMerged(graphID, seq, merged); {
		case err == nil:
			e.buffer.MarkMerged(traceID)
			return nil
		case errors.Is(err, store.ErrConflict):
			e.logger.Debug("merge conflict, retrying on newer snapshot",
				"trace_id", traceID,
				"graph_id", graphID,
				"attempt", attempt)
			continue
		case errors.Is(err, store.ErrNotFound):
			// Graph deleted while merging: no-op by contract.
			e.logger.Warn("graph deleted during merge", "graph_id", graphID)
			return nil
		default:
			return err
		}
	}
	return fmt.Errorf("%w: trace %q graph %q", ErrConflict, traceID, graphID)
}

// MergePending merges every complete-but-unmerged trace of a graph,
// sequentially in creation order. Returns the number merged; individual
// failures are logged and do not stop the batch.
func (e *Engine) MergePending(ctx context.Context, graphID string) int {
	pending := e.buffer.PendingForGraph(graphID)
	merged := 0
	for _, tr := range pending {
		if err := e.MergeTrace(ctx, tr.TraceID, graphID); err != nil {
			e.logger.Error("pending merge failed",
				"trace_id", tr.TraceID,
				"graph_id", graphID,
				"error", err)
			continue
		}
		merged++
	}
	if len(pending) > 0 {
		e.logger.Info("batch merge completed", "graph_id", graphID, "merged", merged, "pending", len(pending))
	}
	return merged
}
