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
	"errors"

	"github.com/AleutianAI/flow-core/services/flow/export"
	"github.com/AleutianAI/flow-core/services/flow/graph"
	"github.com/AleutianAI/flow-core/services/flow/ingest"
	"github.com/AleutianAI/flow-core/services/flow/merge"
	"github.com/AleutianAI/flow-core/services/flow/store"
)

// Sentinel errors for the flow service.
var (
	// ErrGraphNotFound indicates no stored graph for the given ID.
	ErrGraphNotFound = errors.New("graph not found")

	// ErrTraceNotFound indicates no buffered trace for the given ID.
	ErrTraceNotFound = errors.New("trace not found")

	// ErrUnavailable indicates a subsystem the operation needs is down
	// or switched off.
	ErrUnavailable = errors.New("service unavailable")
)

// Code maps an error to its stable machine-readable code. Clients
// branch on these codes, never on error strings.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrGraphNotFound),
		errors.Is(err, merge.ErrGraphNotFound),
		errors.Is(err, ingest.ErrGraphMissing),
		errors.Is(err, store.ErrNotFound):
		return "GRAPH_NOT_FOUND"
	case errors.Is(err, ErrTraceNotFound),
		errors.Is(err, merge.ErrTraceNotFound):
		return "TRACE_NOT_FOUND"
	case errors.Is(err, ingest.ErrQueueFull):
		return "QUEUE_FULL"
	case errors.Is(err, graph.ErrInvalidReference):
		return "INVALID_REFERENCE"
	case errors.Is(err, merge.ErrConflict),
		errors.Is(err, store.ErrConflict):
		return "MERGE_CONFLICT"
	case errors.Is(err, merge.ErrInvalidResult):
		return "MERGE_INVALID"
	case errors.Is(err, ErrUnavailable),
		errors.Is(err, export.ErrDisabled):
		return "UNAVAILABLE"
	case errors.Is(err, ingest.ErrInvalidPayload),
		errors.Is(err, graph.ErrUnknownEnum),
		errors.Is(err, graph.ErrInvalidGraph),
		errors.Is(err, graph.ErrDuplicateNode),
		errors.Is(err, graph.ErrDuplicateEdge):
		return "VALIDATION_ERROR"
	default:
		return "INTERNAL"
	}
}
