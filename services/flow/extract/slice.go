// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract derives read-side projections from a merged graph:
// zoom slices for visualization and end-to-end flow traversals rooted at
// business entry points. All functions operate on a snapshot and return
// fresh values; nothing here touches the store.
package extract

import (
	"fmt"

	"github.com/AleutianAI/flow-core/services/flow/graph"
)

// ZoomSlice returns the subgraph visible at the requested zoom level.
//
// Request levels are zero-based: 0 is the highest-level business
// summary. A node is included when its assigned level is at most
// level+1, so each view shows one layer of detail below itself for
// context. An edge is included only when both endpoints survive,
// keeping the slice closed under its own references.
func ZoomSlice(g *graph.Graph, level graph.ZoomLevel) (*graph.Graph, error) {
	if level < 0 || level > graph.ZoomRuntime {
		return nil, fmt.Errorf("%w: zoom level %d", graph.ErrUnknownEnum, level)
	}

	cutoff := level + 1
	sliced := graph.New(g.Version())
	for _, n := range g.Nodes() {
		if n.ZoomLevel == graph.ZoomUnset || n.ZoomLevel > cutoff {
			continue
		}
		if err := sliced.AddNode(n.Clone()); err != nil {
			return nil, err
		}
	}
	for _, e := range g.Edges() {
		if !sliced.HasNode(e.SourceID) || !sliced.HasNode(e.TargetID) {
			continue
		}
		if err := sliced.AddEdge(e.Clone()); err != nil {
			return nil, err
		}
	}
	return sliced, nil
}
