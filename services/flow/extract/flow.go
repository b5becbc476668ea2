// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"sort"

	"github.com/AleutianAI/flow-core/services/flow/graph"
)

// FlowStep is one node on a traversal from an entry point, annotated
// with its breadth-first depth and the step nodes that reached it.
type FlowStep struct {
	NodeID        string          `json:"nodeId"`
	Name          string          `json:"name"`
	Type          graph.NodeType  `json:"type"`
	ZoomLevel     graph.ZoomLevel `json:"zoomLevel"`
	Depth         int             `json:"depth"`
	ParentNodeIDs []string        `json:"parentNodeIds,omitempty"`
}

// Flow is the reachable subgraph from one entry point, flattened to
// steps in breadth-first order.
type Flow struct {
	EntryNodeID string     `json:"entryNodeId"`
	EntryName   string     `json:"entryName"`
	Steps       []FlowStep `json:"steps"`
}

// ExtractFlows traverses the graph from every entry point, in the order
// the entry nodes were added. Endpoints and topics are the entry points;
// a graph without any yields no flows.
func ExtractFlows(g *graph.Graph) []Flow {
	var flows []Flow
	for _, n := range g.Nodes() {
		if n.Type != graph.NodeTypeEndpoint && n.Type != graph.NodeTypeTopic {
			continue
		}
		flows = append(flows, ExtractFlow(g, n))
	}
	return flows
}

// ExtractFlow walks outgoing edges breadth-first from entry. Each node
// appears exactly once, at its minimum depth; its parents are the
// previous-depth nodes with an edge into it. Step order is deterministic
// for a given graph because edge fan-out follows insertion order.
func ExtractFlow(g *graph.Graph, entry *graph.Node) Flow {
	flow := Flow{EntryNodeID: entry.ID, EntryName: entry.Name}

	depths := map[string]int{entry.ID: 0}
	parents := map[string][]string{}
	frontier := []string{entry.ID}

	for depth := 0; len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, e := range g.Outgoing(id) {
				if seen, ok := depths[e.TargetID]; ok {
					// Record the extra parent only when the target sits
					// exactly one level deeper, so parents stay at
					// minimum depth minus one.
					if seen == depth+1 {
						parents[e.TargetID] = appendUnique(parents[e.TargetID], id)
					}
					continue
				}
				depths[e.TargetID] = depth + 1
				parents[e.TargetID] = []string{id}
				next = append(next, e.TargetID)
			}
		}
		frontier = next
	}

	for _, n := range g.Nodes() {
		d, ok := depths[n.ID]
		if !ok {
			continue
		}
		flow.Steps = append(flow.Steps, FlowStep{
			NodeID:        n.ID,
			Name:          n.Name,
			Type:          n.Type,
			ZoomLevel:     n.ZoomLevel,
			Depth:         d,
			ParentNodeIDs: parents[n.ID],
		})
	}
	// Stable: node insertion order is preserved within a depth.
	sort.SliceStable(flow.Steps, func(i, j int) bool {
		return flow.Steps[i].Depth < flow.Steps[j].Depth
	})
	return flow
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
