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

import (
	"fmt"
	"strings"
)

// Validate runs a read-only invariant check over the graph.
//
// Base rules:
//   - every edge's endpoints exist in the graph
//   - every assigned zoom level lies in {1..5}
//   - execution counts are non-negative
//
// Strict mode additionally rejects self-loops and requires every node to
// have an assigned zoom level. The strict ruleset is deliberately not
// extended beyond that.
//
// Returns nil on success, or an error wrapping ErrInvalidGraph listing
// every violation found.
func Validate(g *Graph, strict bool) error {
	var violations []string

	for _, id := range g.edgeOrder {
		e := g.edges[id]
		if _, ok := g.nodes[e.SourceID]; !ok {
			violations = append(violations, fmt.Sprintf("edge %q: missing source %q", e.ID, e.SourceID))
		}
		if _, ok := g.nodes[e.TargetID]; !ok {
			violations = append(violations, fmt.Sprintf("edge %q: missing target %q", e.ID, e.TargetID))
		}
		if e.ExecutionCount < 0 {
			violations = append(violations, fmt.Sprintf("edge %q: negative execution count %d", e.ID, e.ExecutionCount))
		}
		if strict && e.SourceID == e.TargetID {
			violations = append(violations, fmt.Sprintf("edge %q: self-loop on %q", e.ID, e.SourceID))
		}
	}

	for _, id := range g.nodeOrder {
		n := g.nodes[id]
		if n.ZoomLevel != ZoomUnset && !n.ZoomLevel.Valid() {
			violations = append(violations, fmt.Sprintf("node %q: zoom level %d out of range", n.ID, n.ZoomLevel))
		}
		if strict && n.ZoomLevel == ZoomUnset {
			violations = append(violations, fmt.Sprintf("node %q: zoom level unassigned", n.ID))
		}
	}

	if len(violations) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidGraph, strings.Join(violations, "; "))
	}
	return nil
}
