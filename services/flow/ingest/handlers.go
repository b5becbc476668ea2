// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/flow-core/services/flow/runtime"
	"github.com/AleutianAI/flow-core/services/flow/store"
	"github.com/AleutianAI/flow-core/services/flow/telemetry"
)

// Merger schedules trace merges. Satisfied by merge.Engine.
type Merger interface {
	MergeTrace(ctx context.Context, traceID, graphID string) error
}

// StaticGraphHandler applies static graph work items to the graph store.
// The payload-to-graph transformation runs here, on the worker, so the
// ingress thread only ever pays for an enqueue.
type StaticGraphHandler struct {
	store   *store.Store
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// NewStaticGraphHandler creates the handler.
func NewStaticGraphHandler(s *store.Store, metrics *telemetry.Metrics, logger *slog.Logger) *StaticGraphHandler {
	return &StaticGraphHandler{store: s, metrics: metrics, logger: logger}
}

// Handle builds the graph from the payload and publishes it.
func (h *StaticGraphHandler) Handle(ctx context.Context, work StaticGraphWork) error {
	g, err := BuildGraph(work.Payload)
	if err != nil {
		return fmt.Errorf("static graph %q: %w", work.GraphID, err)
	}
	h.store.PutStatic(work.GraphID, g)
	h.metrics.StaticGraphsIngested.Add(ctx, 1)
	h.logger.Info("static graph stored",
		"graph_id", work.GraphID,
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount())
	return nil
}

// RuntimeEventHandler appends runtime event work items to the trace
// buffer and schedules a merge when the submitter signals completion.
type RuntimeEventHandler struct {
	store   *store.Store
	buffer  *runtime.Buffer
	merger  Merger
	metrics *telemetry.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewRuntimeEventHandler creates the handler.
func NewRuntimeEventHandler(s *store.Store, b *runtime.Buffer, m Merger, metrics *telemetry.Metrics, logger *slog.Logger) *RuntimeEventHandler {
	return &RuntimeEventHandler{
		store:   s,
		buffer:  b,
		merger:  m,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Handle decodes and appends the event batch. When the batch carries the
// trace-complete flag, the trace is marked complete and the merge is
// scheduled asynchronously: the worker finishes its item without waiting
// on merge work.
func (h *RuntimeEventHandler) Handle(ctx context.Context, work RuntimeEventWork) error {
	if !h.store.Exists(work.GraphID) {
		return fmt.Errorf("trace %q: graph %q: %w", work.TraceID, work.GraphID, ErrGraphMissing)
	}

	receivedAt := h.now()
	events := make([]runtime.Event, 0, len(work.Payload.Events))
	for _, ep := range work.Payload.Events {
		ev, err := EventFromPayload(ep, receivedAt)
		if err != nil {
			return fmt.Errorf("trace %q: %w", work.TraceID, err)
		}
		events = append(events, ev)
	}

	added, deduped := h.buffer.Append(work.TraceID, work.GraphID, events)
	if added > 0 {
		h.metrics.RuntimeEventsIngested.Add(ctx, int64(added))
	}
	if deduped > 0 {
		h.metrics.EventsDeduplicated.Add(ctx, int64(deduped))
	}

	if work.TraceComplete {
		h.buffer.MarkComplete(work.TraceID)
		go func(traceID, graphID string) {
			if err := h.merger.MergeTrace(context.WithoutCancel(ctx), traceID, graphID); err != nil {
				h.logger.Error("async merge failed",
					"trace_id", traceID,
					"graph_id", graphID,
					"error", err)
			}
		}(work.TraceID, work.GraphID)
	}

	h.logger.Debug("runtime events processed",
		"trace_id", work.TraceID,
		"added", added,
		"deduplicated", deduped,
		"trace_complete", work.TraceComplete)
	return nil
}
