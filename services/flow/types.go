// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package flow

import (
	"time"

	"github.com/AleutianAI/flow-core/services/flow/graph"
	"github.com/AleutianAI/flow-core/services/flow/runtime"
	"github.com/AleutianAI/flow-core/services/flow/store"
)

// ServiceVersion is the flow service version.
const ServiceVersion = "0.1.0"

// ErrorResponse is the error envelope returned by every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// SubmitResponse acknowledges an accepted ingestion submission. The work
// is queued, not yet processed.
type SubmitResponse struct {
	Accepted  bool   `json:"accepted"`
	GraphID   string `json:"graphId"`
	TraceID   string `json:"traceId,omitempty"`
	QueueSize int    `json:"queueSize"`
}

// NodeView is the JSON projection of a graph node.
type NodeView struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Type       graph.NodeType   `json:"type"`
	ServiceID  string           `json:"serviceId"`
	Visibility graph.Visibility `json:"visibility"`
	ZoomLevel  graph.ZoomLevel  `json:"zoomLevel"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
}

// EdgeView is the JSON projection of a graph edge.
type EdgeView struct {
	ID             string         `json:"id"`
	SourceID       string         `json:"sourceId"`
	TargetID       string         `json:"targetId"`
	Type           graph.EdgeType `json:"type"`
	ExecutionCount int64          `json:"executionCount"`
	Attributes     map[string]any `json:"attributes,omitempty"`
}

// GraphView is a full graph snapshot with its store metadata.
type GraphView struct {
	Meta  store.Metadata `json:"meta"`
	Nodes []NodeView     `json:"nodes"`
	Edges []EdgeView     `json:"edges"`
}

// NewGraphView projects a graph snapshot into its JSON form.
func NewGraphView(meta store.Metadata, g *graph.Graph) GraphView {
	view := GraphView{
		Meta:  meta,
		Nodes: make([]NodeView, 0, g.NodeCount()),
		Edges: make([]EdgeView, 0, g.EdgeCount()),
	}
	for _, n := range g.Nodes() {
		view.Nodes = append(view.Nodes, NodeView{
			ID:         n.ID,
			Name:       n.Name,
			Type:       n.Type,
			ServiceID:  n.ServiceID,
			Visibility: n.Visibility,
			ZoomLevel:  n.ZoomLevel,
			Metadata:   n.Metadata,
		})
	}
	for _, e := range g.Edges() {
		view.Edges = append(view.Edges, EdgeView{
			ID:             e.ID,
			SourceID:       e.SourceID,
			TargetID:       e.TargetID,
			Type:           e.Type,
			ExecutionCount: e.ExecutionCount,
			Attributes:     e.Attributes,
		})
	}
	return view
}

// EventView is the JSON projection of one buffered runtime event.
type EventView struct {
	EventID      string            `json:"eventId,omitempty"`
	Type         runtime.EventType `json:"type"`
	Timestamp    time.Time         `json:"timestamp"`
	NodeID       string            `json:"nodeId"`
	SpanID       string            `json:"spanId,omitempty"`
	ParentSpanID string            `json:"parentSpanId,omitempty"`
	Attributes   map[string]any    `json:"attributes,omitempty"`
}

// CheckpointView is the JSON projection of a trace checkpoint.
type CheckpointView struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Timestamp time.Time      `json:"timestamp"`
	NodeID    string         `json:"nodeId"`
	Data      map[string]any `json:"data,omitempty"`
}

// TraceErrorView is the JSON projection of an observed trace error.
type TraceErrorView struct {
	ID        string    `json:"id"`
	Type      string    `json:"type,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"nodeId"`
	SpanID    string    `json:"spanId,omitempty"`
}

// AsyncHopView is the JSON projection of a matched produce/consume pair.
type AsyncHopView struct {
	CorrelationID  string    `json:"correlationId"`
	ProducerNodeID string    `json:"producerNodeId"`
	ConsumerNodeID string    `json:"consumerNodeId"`
	ProducedAt     time.Time `json:"producedAt"`
	ConsumedAt     time.Time `json:"consumedAt"`
}

// TraceView is the JSON projection of a buffered trace: the raw events
// plus every derived projection, so a single read answers both "what
// happened" and "what did the pipeline make of it".
type TraceView struct {
	TraceID     string           `json:"traceId"`
	GraphID     string           `json:"graphId"`
	EventCount  int              `json:"eventCount"`
	Events      []EventView      `json:"events"`
	Checkpoints []CheckpointView `json:"checkpoints"`
	Errors      []TraceErrorView `json:"errors"`
	AsyncHops   []AsyncHopView   `json:"asyncHops"`
	HasErrors   bool             `json:"hasErrors"`
	Complete    bool             `json:"complete"`
	Merged      bool             `json:"merged"`
	CreatedAt   time.Time        `json:"createdAt"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
}

// NewTraceView projects a trace snapshot into its JSON form.
func NewTraceView(tr runtime.Trace) TraceView {
	view := TraceView{
		TraceID:     tr.TraceID,
		GraphID:     tr.GraphID,
		EventCount:  len(tr.Events),
		Events:      make([]EventView, 0, len(tr.Events)),
		Checkpoints: make([]CheckpointView, 0, len(tr.Checkpoints)),
		Errors:      make([]TraceErrorView, 0, len(tr.Errors)),
		AsyncHops:   make([]AsyncHopView, 0, len(tr.AsyncHops)),
		HasErrors:   tr.HasErrors(),
		Complete:    tr.Complete,
		Merged:      tr.Merged,
		CreatedAt:   tr.CreatedAt,
	}
	for _, ev := range tr.Events {
		view.Events = append(view.Events, EventView{
			EventID:      ev.EventID,
			Type:         ev.Type,
			Timestamp:    ev.Timestamp,
			NodeID:       ev.NodeID,
			SpanID:       ev.SpanID,
			ParentSpanID: ev.ParentSpanID,
			Attributes:   ev.Attributes,
		})
	}
	for _, cp := range tr.Checkpoints {
		view.Checkpoints = append(view.Checkpoints, CheckpointView{
			ID:        cp.ID,
			Name:      cp.Name,
			Timestamp: cp.Timestamp,
			NodeID:    cp.NodeID,
			Data:      cp.Data,
		})
	}
	for _, te := range tr.Errors {
		view.Errors = append(view.Errors, TraceErrorView{
			ID:        te.ID,
			Type:      te.Type,
			Message:   te.Message,
			Timestamp: te.Timestamp,
			NodeID:    te.NodeID,
			SpanID:    te.SpanID,
		})
	}
	for _, hop := range tr.AsyncHops {
		view.AsyncHops = append(view.AsyncHops, AsyncHopView{
			CorrelationID:  hop.CorrelationID,
			ProducerNodeID: hop.ProducerNodeID,
			ConsumerNodeID: hop.ConsumerNodeID,
			ProducedAt:     hop.ProducedAt,
			ConsumedAt:     hop.ConsumedAt,
		})
	}
	if !tr.CompletedAt.IsZero() {
		completed := tr.CompletedAt
		view.CompletedAt = &completed
	}
	return view
}

// MergeResponse reports a batch merge outcome.
type MergeResponse struct {
	GraphID string `json:"graphId"`
	Merged  int    `json:"merged"`
}

// CypherResponse carries an exported Cypher script.
type CypherResponse struct {
	GraphID    string   `json:"graphId"`
	Statements []string `json:"statements"`
}

// HealthResponse reports pipeline health. Status is "ok" or "degraded";
// degraded means queue utilization exceeded the backpressure threshold.
type HealthResponse struct {
	Status           string `json:"status"`
	Version          string `json:"version"`
	QueueSize        int    `json:"queueSize"`
	QueueCapacity    int    `json:"queueCapacity"`
	QueueUtilization int    `json:"queueUtilization"`
	ActiveWorkers    int    `json:"activeWorkers"`
	GraphCount       int    `json:"graphCount"`
	TraceCount       int    `json:"traceCount"`
}
