// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package merge

import "github.com/AleutianAI/flow-core/services/flow/graph"

// applyZoomPolicy assigns a zoom level to every node that still has none.
// Nodes carrying a level keep it, so the policy never fights a prior
// merge or an explicit submission.
//
// Business entry points (endpoints, topics) sit at level 1, structural
// containers (services, classes) at level 2, public methods at level 3,
// and everything less visible at level 4. Synthetic runtime nodes are
// created at level 5 and never reach this policy unset.
func applyZoomPolicy(g *graph.Graph) {
	for _, n := range g.Nodes() {
		if n.ZoomLevel != graph.ZoomUnset {
			continue
		}
		n.ZoomLevel = zoomFor(n)
	}
}

func zoomFor(n *graph.Node) graph.ZoomLevel {
	switch n.Type {
	case graph.NodeTypeEndpoint, graph.NodeTypeTopic:
		return graph.ZoomBusiness
	case graph.NodeTypeService, graph.NodeTypeClass:
		return graph.ZoomService
	case graph.NodeTypeMethod:
		if n.Visibility == graph.VisibilityPublic {
			return graph.ZoomPublic
		}
		return graph.ZoomPrivate
	default:
		// PRIVATE_METHOD and anything future lands at the detail level.
		return graph.ZoomPrivate
	}
}
