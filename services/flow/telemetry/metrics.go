// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all flow core metrics.
const meterName = "flow.core"

// Metrics contains the pre-defined instruments for the flow core
// pipeline. Counters sit at the enumerated call sites: enqueue
// accept/reject, event ingestion, dedup hits, merge and export outcomes,
// trace eviction. Gauges observe the queue and the two stores.
//
// Until a meter provider is installed (cmd/flowcore does this), the
// global meter is a no-op, which is exactly what tests want.
//
// Thread Safety: safe for concurrent use after creation.
type Metrics struct {
	// StaticGraphsIngested counts static graphs stored by workers.
	StaticGraphsIngested metric.Int64Counter

	// RuntimeEventsIngested counts runtime events appended to traces.
	RuntimeEventsIngested metric.Int64Counter

	// EventsDeduplicated counts events dropped as duplicates.
	EventsDeduplicated metric.Int64Counter

	// QueueAccepted counts successful enqueues.
	QueueAccepted metric.Int64Counter

	// QueueRejected counts enqueues that timed out on a full queue.
	QueueRejected metric.Int64Counter

	// MergesCompleted counts traces successfully folded into graphs.
	MergesCompleted metric.Int64Counter

	// MergesFailed counts merges dropped after conflict exhaustion or
	// validation rejection.
	MergesFailed metric.Int64Counter

	// MergeDuration records merge wall time in seconds.
	MergeDuration metric.Float64Histogram

	// ExportsCompleted counts successful analytics pushes.
	ExportsCompleted metric.Int64Counter

	// ExportsFailed counts failed analytics pushes.
	ExportsFailed metric.Int64Counter

	// TracesEvicted counts traces removed by the eviction task.
	TracesEvicted metric.Int64Counter
}

// NewMetrics creates a Metrics instance with all instruments registered
// on the global meter.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.StaticGraphsIngested, err = meter.Int64Counter(
		"flow_static_graphs_ingested_total",
		metric.WithDescription("Static graphs stored"),
	); err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	if m.RuntimeEventsIngested, err = meter.Int64Counter(
		"flow_runtime_events_ingested_total",
		metric.WithDescription("Runtime events appended to traces"),
	); err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	if m.EventsDeduplicated, err = meter.Int64Counter(
		"flow_events_deduplicated_total",
		metric.WithDescription("Runtime events dropped as duplicates"),
	); err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	if m.QueueAccepted, err = meter.Int64Counter(
		"flow_ingest_queue_accepted_total",
		metric.WithDescription("Work items accepted by the ingestion queue"),
	); err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	if m.QueueRejected, err = meter.Int64Counter(
		"flow_ingest_queue_rejected_total",
		metric.WithDescription("Work items rejected by a full ingestion queue"),
	); err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	if m.MergesCompleted, err = meter.Int64Counter(
		"flow_merges_completed_total",
		metric.WithDescription("Traces merged into graphs"),
	); err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	if m.MergesFailed, err = meter.Int64Counter(
		"flow_merges_failed_total",
		metric.WithDescription("Merges dropped after conflict or validation failure"),
	); err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	if m.MergeDuration, err = meter.Float64Histogram(
		"flow_merge_duration_seconds",
		metric.WithDescription("Merge wall time in seconds"),
	); err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	if m.ExportsCompleted, err = meter.Int64Counter(
		"flow_exports_completed_total",
		metric.WithDescription("Successful analytics pushes"),
	); err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	if m.ExportsFailed, err = meter.Int64Counter(
		"flow_exports_failed_total",
		metric.WithDescription("Failed analytics pushes"),
	); err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	if m.TracesEvicted, err = meter.Int64Counter(
		"flow_traces_evicted_total",
		metric.WithDescription("Traces removed by the eviction task"),
	); err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}
	return m, nil
}

// RegisterGauges wires observable gauges for queue fill and store sizes.
// The callbacks must be cheap and safe for concurrent use.
func RegisterGauges(queueSize, queueUtilization, graphCount, traceCount func() int64) error {
	meter := otel.Meter(meterName)

	size, err := meter.Int64ObservableGauge(
		"flow_ingest_queue_size",
		metric.WithDescription("Current ingestion queue size"),
	)
	if err != nil {
		return fmt.Errorf("register gauges: %w", err)
	}
	util, err := meter.Int64ObservableGauge(
		"flow_ingest_queue_utilization_percent",
		metric.WithDescription("Ingestion queue utilization percentage"),
	)
	if err != nil {
		return fmt.Errorf("register gauges: %w", err)
	}
	graphs, err := meter.Int64ObservableGauge(
		"flow_store_graphs_count",
		metric.WithDescription("Graphs held in memory"),
	)
	if err != nil {
		return fmt.Errorf("register gauges: %w", err)
	}
	traces, err := meter.Int64ObservableGauge(
		"flow_store_traces_count",
		metric.WithDescription("Traces held in memory"),
	)
	if err != nil {
		return fmt.Errorf("register gauges: %w", err)
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(size, queueSize())
		o.ObserveInt64(util, queueUtilization())
		o.ObserveInt64(graphs, graphCount())
		o.ObserveInt64(traces, traceCount())
		return nil
	}, size, util, graphs, traces)
	if err != nil {
		return fmt.Errorf("register gauges: %w", err)
	}
	return nil
}
