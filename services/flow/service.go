// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package flow assembles the telemetry pipeline: bounded ingestion in
// front, the graph store and trace buffer in the middle, and the merge,
// extraction, and export read paths behind them.
//
// Writes are asynchronous. A submission is validated, enqueued, and
// acknowledged; workers apply it to the store or buffer off the request
// path. Reads always see the latest committed snapshot.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/flow-core/pkg/validation"
	"github.com/AleutianAI/flow-core/services/flow/config"
	"github.com/AleutianAI/flow-core/services/flow/export"
	"github.com/AleutianAI/flow-core/services/flow/extract"
	"github.com/AleutianAI/flow-core/services/flow/graph"
	"github.com/AleutianAI/flow-core/services/flow/ingest"
	"github.com/AleutianAI/flow-core/services/flow/merge"
	"github.com/AleutianAI/flow-core/services/flow/runtime"
	"github.com/AleutianAI/flow-core/services/flow/store"
	"github.com/AleutianAI/flow-core/services/flow/telemetry"
)

// Service is the pipeline facade. All HTTP handlers and embedding
// callers go through it; no component behind it is reached directly.
type Service struct {
	cfg     config.Config
	store   *store.Store
	buffer  *runtime.Buffer
	queue   *ingest.Queue
	pool    *ingest.Pool
	engine  *merge.Engine
	writer  *export.Writer
	metrics *telemetry.Metrics
	logger  *slog.Logger

	stopEviction chan struct{}
	evictionDone sync.WaitGroup
	startOnce    sync.Once
	stopOnce     sync.Once
}

// NewService wires the pipeline from config. The service is inert until
// Start is called.
func NewService(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Service, error) {
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("flow: create metrics: %w", err)
	}

	graphStore := store.New()
	buffer := runtime.NewBuffer(runtime.Options{
		TTL:           cfg.Trace.TTL.Std(),
		MaxCount:      cfg.Trace.MaxCount,
		UnmergedBound: cfg.Trace.UnmergedBound.Std(),
		DedupEnabled:  cfg.Trace.DedupEnabled,
	}, runtime.WithLogger(logger))

	engine := merge.NewEngine(graphStore, buffer, metrics, logger, cfg.Validator.Strict)

	writer, err := export.NewWriter(ctx, export.WriterConfig{
		Enabled:  cfg.Export.Enabled,
		URI:      cfg.Export.URI,
		Username: cfg.Export.Username,
		Password: cfg.Export.Password,
		Timeout:  cfg.Export.Timeout.Std(),
	}, metrics, logger)
	if err != nil {
		return nil, err
	}

	queue := ingest.NewQueue(cfg.Queue.Capacity)
	staticHandler := ingest.NewStaticGraphHandler(graphStore, metrics, logger)
	runtimeHandler := ingest.NewRuntimeEventHandler(graphStore, buffer, engine, metrics, logger)
	pool := ingest.NewPool(queue, staticHandler, runtimeHandler, ingest.PoolOptions{
		WorkerCount: cfg.Worker.Count,
		PollTimeout: cfg.Worker.PollTimeout.Std(),
		DrainGrace:  cfg.Worker.DrainGrace.Std(),
	}, logger)

	svc := &Service{
		cfg:          cfg,
		store:        graphStore,
		buffer:       buffer,
		queue:        queue,
		pool:         pool,
		engine:       engine,
		writer:       writer,
		metrics:      metrics,
		logger:       logger,
		stopEviction: make(chan struct{}),
	}

	err = telemetry.RegisterGauges(
		func() int64 { return int64(queue.Size()) },
		func() int64 { return int64(queue.UtilizationPercent()) },
		func() int64 { return int64(graphStore.Count()) },
		func() int64 { return int64(buffer.Count()) },
	)
	if err != nil {
		return nil, fmt.Errorf("flow: register gauges: %w", err)
	}
	return svc, nil
}

// Start launches the ingestion workers and the eviction loop.
func (s *Service) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.pool.Start(ctx)
		s.evictionDone.Add(1)
		go s.evictionLoop(ctx)
		s.logger.Info("flow service started",
			"queue_capacity", s.cfg.Queue.Capacity,
			"workers", s.cfg.Worker.Count,
			"export_enabled", s.writer.Enabled())
	})
}

// Stop drains the workers, stops eviction, and closes the writer. Queued
// work is given the configured drain grace before being abandoned.
func (s *Service) Stop(ctx context.Context) {
	s.stopOnce.Do(func() {
		close(s.stopEviction)
		s.evictionDone.Wait()
		s.pool.Stop()
		if err := s.writer.Close(ctx); err != nil {
			s.logger.Error("analytics writer close failed", "error", err)
		}
		s.logger.Info("flow service stopped")
	})
}

func (s *Service) evictionLoop(ctx context.Context) {
	defer s.evictionDone.Done()
	interval := s.cfg.Trace.EvictionInterval.Std()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopEviction:
			return
		case <-ticker.C:
			if evicted := s.buffer.EvictExpired(); evicted > 0 {
				s.metrics.TracesEvicted.Add(ctx, int64(evicted))
			}
		}
	}
}

// SubmitStatic enqueues a static graph submission. The graph becomes
// visible to reads only after a worker processes it.
func (s *Service) SubmitStatic(ctx context.Context, payload ingest.StaticGraphPayload) (SubmitResponse, error) {
	if err := validation.ValidateIdentifier("graphId", payload.GraphID); err != nil {
		return SubmitResponse{}, fmt.Errorf("%w: %w", ingest.ErrInvalidPayload, err)
	}
	work := ingest.StaticGraphWork{
		GraphID: payload.GraphID,
		Payload: payload,
		Created: time.Now(),
	}
	if !s.queue.Enqueue(work, s.cfg.Queue.EnqueueTimeout.Std()) {
		s.metrics.QueueRejected.Add(ctx, 1)
		return SubmitResponse{}, fmt.Errorf("graph %q: %w", payload.GraphID, ingest.ErrQueueFull)
	}
	s.metrics.QueueAccepted.Add(ctx, 1)
	return SubmitResponse{
		Accepted:  true,
		GraphID:   payload.GraphID,
		QueueSize: s.queue.Size(),
	}, nil
}

// SubmitRuntime enqueues a runtime event batch. The target graph must
// already exist; the check happens here so the submitter gets a
// synchronous GRAPH_NOT_FOUND instead of a silently dropped work item.
func (s *Service) SubmitRuntime(ctx context.Context, payload ingest.RuntimeEventPayload) (SubmitResponse, error) {
	if err := validation.ValidateIdentifier("graphId", payload.GraphID); err != nil {
		return SubmitResponse{}, fmt.Errorf("%w: %w", ingest.ErrInvalidPayload, err)
	}
	if err := validation.ValidateIdentifier("traceId", payload.TraceID); err != nil {
		return SubmitResponse{}, fmt.Errorf("%w: %w", ingest.ErrInvalidPayload, err)
	}
	if !s.store.Exists(payload.GraphID) {
		return SubmitResponse{}, fmt.Errorf("graph %q: %w", payload.GraphID, ErrGraphNotFound)
	}
	work := ingest.RuntimeEventWork{
		TraceID:       payload.TraceID,
		GraphID:       payload.GraphID,
		Payload:       payload,
		TraceComplete: payload.TraceComplete,
		Created:       time.Now(),
	}
	if !s.queue.Enqueue(work, s.cfg.Queue.EnqueueTimeout.Std()) {
		s.metrics.QueueRejected.Add(ctx, 1)
		return SubmitResponse{}, fmt.Errorf("trace %q: %w", payload.TraceID, ingest.ErrQueueFull)
	}
	s.metrics.QueueAccepted.Add(ctx, 1)
	return SubmitResponse{
		Accepted:  true,
		GraphID:   payload.GraphID,
		TraceID:   payload.TraceID,
		QueueSize: s.queue.Size(),
	}, nil
}

// GetGraph returns the latest snapshot and metadata of a graph.
func (s *Service) GetGraph(graphID string) (GraphView, error) {
	g, meta, ok := s.store.GetWithMetadata(graphID)
	if !ok {
		return GraphView{}, fmt.Errorf("graph %q: %w", graphID, ErrGraphNotFound)
	}
	return NewGraphView(meta, g), nil
}

// ListGraphs returns metadata for every stored graph, ordered by ID.
func (s *Service) ListGraphs() []store.Metadata {
	return s.store.List()
}

// DeleteGraph removes a graph and every buffered trace that targets it.
// In-flight merges against the deleted graph become no-ops.
func (s *Service) DeleteGraph(graphID string) error {
	if !s.store.Delete(graphID) {
		return fmt.Errorf("graph %q: %w", graphID, ErrGraphNotFound)
	}
	dropped := s.buffer.DeleteForGraph(graphID)
	s.logger.Info("graph deleted", "graph_id", graphID, "traces_dropped", dropped)
	return nil
}

// Slice returns the zoom-level view of a graph.
func (s *Service) Slice(graphID string, level graph.ZoomLevel) (GraphView, error) {
	g, meta, ok := s.store.GetWithMetadata(graphID)
	if !ok {
		return GraphView{}, fmt.Errorf("graph %q: %w", graphID, ErrGraphNotFound)
	}
	sliced, err := extract.ZoomSlice(g, level)
	if err != nil {
		return GraphView{}, err
	}
	meta.NodeCount = sliced.NodeCount()
	meta.EdgeCount = sliced.EdgeCount()
	return NewGraphView(meta, sliced), nil
}

// Flows extracts the end-to-end flows of a graph, one per entry point.
func (s *Service) Flows(graphID string) ([]extract.Flow, error) {
	g, ok := s.store.Get(graphID)
	if !ok {
		return nil, fmt.Errorf("graph %q: %w", graphID, ErrGraphNotFound)
	}
	return extract.ExtractFlows(g), nil
}

// GetTrace returns the buffered trace snapshot.
func (s *Service) GetTrace(traceID string) (TraceView, error) {
	tr, ok := s.buffer.Get(traceID)
	if !ok {
		return TraceView{}, fmt.Errorf("trace %q: %w", traceID, ErrTraceNotFound)
	}
	return NewTraceView(tr), nil
}

// ListTraces returns trace snapshots for a graph, oldest first.
func (s *Service) ListTraces(graphID string) ([]TraceView, error) {
	if !s.store.Exists(graphID) {
		return nil, fmt.Errorf("graph %q: %w", graphID, ErrGraphNotFound)
	}
	traces := s.buffer.TracesForGraph(graphID)
	views := make([]TraceView, 0, len(traces))
	for _, tr := range traces {
		views = append(views, NewTraceView(tr))
	}
	return views, nil
}

// MergePending merges every complete unmerged trace of a graph.
func (s *Service) MergePending(ctx context.Context, graphID string) (MergeResponse, error) {
	if !s.store.Exists(graphID) {
		return MergeResponse{}, fmt.Errorf("graph %q: %w", graphID, ErrGraphNotFound)
	}
	merged := s.engine.MergePending(ctx, graphID)
	return MergeResponse{GraphID: graphID, Merged: merged}, nil
}

// ExportCypher renders a graph as an ordered Cypher script.
func (s *Service) ExportCypher(graphID string) (CypherResponse, error) {
	g, meta, ok := s.store.GetWithMetadata(graphID)
	if !ok {
		return CypherResponse{}, fmt.Errorf("graph %q: %w", graphID, ErrGraphNotFound)
	}
	return CypherResponse{
		GraphID:    graphID,
		Statements: export.BuildStatements(meta, g),
	}, nil
}

// PushToAnalytics pushes the latest graph snapshot to Neo4j.
func (s *Service) PushToAnalytics(ctx context.Context, graphID string) (export.Result, error) {
	g, meta, ok := s.store.GetWithMetadata(graphID)
	if !ok {
		return export.Result{}, fmt.Errorf("graph %q: %w", graphID, ErrGraphNotFound)
	}
	return s.writer.Push(ctx, meta, g)
}

// Health reports pipeline state. Status degrades when queue utilization
// exceeds the configured backpressure threshold.
func (s *Service) Health() HealthResponse {
	utilization := s.queue.UtilizationPercent()
	status := "ok"
	if utilization > s.cfg.Queue.BackpressureThreshold {
		status = "degraded"
	}
	return HealthResponse{
		Status:           status,
		Version:          ServiceVersion,
		QueueSize:        s.queue.Size(),
		QueueCapacity:    s.queue.Capacity(),
		QueueUtilization: utilization,
		ActiveWorkers:    s.pool.ActiveWorkers(),
		GraphCount:       s.store.Count(),
		TraceCount:       s.buffer.Count(),
	}
}
