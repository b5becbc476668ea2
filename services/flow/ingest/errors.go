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

import "errors"

// Sentinel errors for the ingestion path.
var (
	// ErrQueueFull indicates the bounded queue rejected an item within
	// the enqueue timeout. The submitter decides retry policy; dropped
	// items are never silently retained.
	ErrQueueFull = errors.New("ingestion queue full")

	// ErrInvalidPayload indicates a malformed submission: unknown enum,
	// missing required field, or an edge referencing an absent node.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrGraphMissing indicates a runtime submission for a graph ID
	// with no stored graph.
	ErrGraphMissing = errors.New("graph not found for runtime events")
)
