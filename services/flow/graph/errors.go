// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import "errors"

// Sentinel errors for graph construction and validation.
var (
	// ErrInvalidReference indicates an edge endpoint that is not present
	// in the graph at the moment the edge is added.
	ErrInvalidReference = errors.New("edge endpoint not present in graph")

	// ErrDuplicateNode indicates a node ID that already exists.
	ErrDuplicateNode = errors.New("duplicate node id")

	// ErrDuplicateEdge indicates an edge ID that already exists.
	ErrDuplicateEdge = errors.New("duplicate edge id")

	// ErrUnknownEnum indicates a submitted enumeration value outside the
	// accepted set.
	ErrUnknownEnum = errors.New("unknown enumeration value")

	// ErrInvalidGraph indicates the validator rejected the graph.
	ErrInvalidGraph = errors.New("graph failed validation")
)
