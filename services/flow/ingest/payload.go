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

// StaticGraphPayload is the submitted graph record, schema version "1".
//
// The binding tags drive gin's validator at the HTTP boundary; the
// loader re-checks everything it depends on, so the payload is safe to
// process no matter how it arrived.
type StaticGraphPayload struct {
	Version string         `json:"version"`
	GraphID string         `json:"graphId" binding:"required"`
	Nodes   []NodePayload  `json:"nodes" binding:"required,dive"`
	Edges   []EdgePayload  `json:"edges" binding:"omitempty,dive"`
}

// NodePayload is one submitted node. Data is an open attribute bag;
// well-known keys are "visibility" and "serviceId".
type NodePayload struct {
	ID   string         `json:"id" binding:"required"`
	Type string         `json:"type" binding:"required"`
	Name string         `json:"name"`
	Data map[string]any `json:"data"`
}

// EdgePayload is one submitted edge.
type EdgePayload struct {
	ID   string `json:"id" binding:"required"`
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
	Type string `json:"type" binding:"required"`
}

// RuntimeEventPayload is the submitted event batch for one trace.
type RuntimeEventPayload struct {
	GraphID       string         `json:"graphId" binding:"required"`
	TraceID       string         `json:"traceId" binding:"required"`
	Events        []EventPayload `json:"events" binding:"required,dive"`
	TraceComplete bool           `json:"traceComplete"`
}

// EventPayload is one submitted runtime event. Timestamp is epoch
// milliseconds.
type EventPayload struct {
	EventID       string         `json:"eventId"`
	Type          string         `json:"type" binding:"required"`
	Timestamp     int64          `json:"timestamp"`
	NodeID        string         `json:"nodeId" binding:"required"`
	SpanID        string         `json:"spanId"`
	ParentSpanID  string         `json:"parentSpanId"`
	DurationMS    *int64         `json:"durationMs"`
	CorrelationID string         `json:"correlationId"`
	ErrorMessage  string         `json:"errorMessage"`
	ErrorType     string         `json:"errorType"`
	Attributes    map[string]any `json:"attributes"`
}
