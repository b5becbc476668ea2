// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ingest decouples request handlers from processing: a bounded
// work queue, a worker pool draining it, and the payload schema the two
// submission paths share.
package ingest

import "time"

// WorkItem is the tagged sum of the two ingestion work variants. The
// interface is sealed: only StaticGraphWork and RuntimeEventWork
// implement it, and the worker dispatch is exhaustive over those two.
type WorkItem interface {
	// EntityID identifies the item in logs: the graph ID for static
	// work, the trace ID for runtime work.
	EntityID() string

	// CreatedAt is when the item was enqueued.
	CreatedAt() time.Time

	sealed()
}

// StaticGraphWork carries a static graph submission.
type StaticGraphWork struct {
	GraphID string
	Payload StaticGraphPayload
	Created time.Time
}

// EntityID returns the graph ID.
func (w StaticGraphWork) EntityID() string { return w.GraphID }

// CreatedAt returns the enqueue time.
func (w StaticGraphWork) CreatedAt() time.Time { return w.Created }

func (StaticGraphWork) sealed() {}

// RuntimeEventWork carries a batch of runtime events for one trace.
type RuntimeEventWork struct {
	TraceID       string
	GraphID       string
	Payload       RuntimeEventPayload
	TraceComplete bool
	Created       time.Time
}

// EntityID returns the trace ID.
func (w RuntimeEventWork) EntityID() string { return w.TraceID }

// CreatedAt returns the enqueue time.
func (w RuntimeEventWork) CreatedAt() time.Time { return w.Created }

func (RuntimeEventWork) sealed() {}
