// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package runtime buffers per-trace runtime events until they are merged
// into the associated graph.
package runtime

import (
	"fmt"
	"time"
)

// EventType classifies a runtime event.
type EventType string

// Event types. The runtime plugin also emits START/END and
// ASYNC_SEND/ASYNC_RECEIVE; those are normalized to these values at
// parse time.
const (
	EventMethodEnter  EventType = "METHOD_ENTER"
	EventMethodExit   EventType = "METHOD_EXIT"
	EventProduceTopic EventType = "PRODUCE_TOPIC"
	EventConsumeTopic EventType = "CONSUME_TOPIC"
	EventCheckpoint   EventType = "CHECKPOINT"
	EventError        EventType = "ERROR"
)

// ParseEventType normalizes a submitted event type string.
//
// START/END and ASYNC_SEND/ASYNC_RECEIVE are accepted as synonyms of the
// canonical names. Unknown values are an error: the payload schema is
// explicit, not best-effort.
func ParseEventType(s string) (EventType, error) {
	switch s {
	case "METHOD_ENTER", "START":
		return EventMethodEnter, nil
	case "METHOD_EXIT", "END":
		return EventMethodExit, nil
	case "PRODUCE_TOPIC", "ASYNC_SEND":
		return EventProduceTopic, nil
	case "CONSUME_TOPIC", "ASYNC_RECEIVE":
		return EventConsumeTopic, nil
	case "CHECKPOINT":
		return EventCheckpoint, nil
	case "ERROR":
		return EventError, nil
	default:
		return "", fmt.Errorf("unknown event type %q", s)
	}
}

// Event is a single runtime observation within a trace.
type Event struct {
	EventID       string
	Type          EventType
	Timestamp     time.Time
	NodeID        string
	SpanID        string
	ParentSpanID  string
	CorrelationID string
	ErrorMessage  string
	ErrorType     string
	Attributes    map[string]any
}

// DedupKey returns the key used to detect repeat submissions of the same
// event: the event ID when present, otherwise (spanId, type, timestamp).
func (e Event) DedupKey() string {
	if e.EventID != "" {
		return e.EventID
	}
	return fmt.Sprintf("%s:%s:%d", e.SpanID, e.Type, e.Timestamp.UnixMilli())
}

// correlation returns the async correlation ID, preferring the explicit
// attribute over the top-level field. An empty result means the event
// takes no part in async-hop matching.
func (e Event) correlation() string {
	if e.Attributes != nil {
		if v, ok := e.Attributes["correlationId"].(string); ok && v != "" {
			return v
		}
	}
	return e.CorrelationID
}

// Checkpoint is a named marker within a trace, derived from CHECKPOINT
// events as they are appended.
type Checkpoint struct {
	ID        string
	Name      string
	Timestamp time.Time
	NodeID    string
	Data      map[string]any
}

// TraceError is an error observation, derived from ERROR events.
type TraceError struct {
	ID        string
	Type      string
	Message   string
	Timestamp time.Time
	NodeID    string
	SpanID    string
}

// AsyncHop is a produce/consume pair sharing a correlation ID: a
// message-mediated control transfer between two nodes.
type AsyncHop struct {
	CorrelationID  string
	ProducerNodeID string
	ConsumerNodeID string
	ProducedAt     time.Time
	ConsumedAt     time.Time
}

// Trace is an immutable snapshot of one execution instance.
type Trace struct {
	TraceID     string
	GraphID     string
	Events      []Event
	Checkpoints []Checkpoint
	Errors      []TraceError
	AsyncHops   []AsyncHop
	CreatedAt   time.Time
	CompletedAt time.Time
	Complete    bool
	Merged      bool
}

// HasErrors reports whether the trace observed any ERROR event.
func (t Trace) HasErrors() bool { return len(t.Errors) > 0 }
