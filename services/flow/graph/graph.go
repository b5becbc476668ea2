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

import "fmt"

// Graph is a versioned directed multigraph.
//
// Nodes and edges are keyed by globally unique IDs. Insertion order is
// preserved for deterministic iteration: the merge engine and the Cypher
// exporter both rely on it to produce byte-identical output for identical
// input.
type Graph struct {
	version string

	nodes     map[string]*Node
	nodeOrder []string

	edges     map[string]*Edge
	edgeOrder []string

	// Adjacency, maintained in lockstep with edges. Values are edge IDs
	// in insertion order.
	outgoing map[string][]string
	incoming map[string][]string

	// Trace IDs already folded into this graph. Makes a merge of the
	// same trace a no-op, so repeated merge attempts cannot double-count
	// execution counts or durations.
	mergedTraces map[string]struct{}
}

// New creates an empty graph carrying the submitter's opaque version
// string.
func New(version string) *Graph {
	return &Graph{
		version:      version,
		nodes:        make(map[string]*Node),
		edges:        make(map[string]*Edge),
		outgoing:     make(map[string][]string),
		incoming:     make(map[string][]string),
		mergedTraces: make(map[string]struct{}),
	}
}

// Version returns the submitter-assigned version string.
func (g *Graph) Version() string { return g.version }

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// AddNode inserts a node. The node ID must be unique within the graph.
func (g *Graph) AddNode(n *Node) error {
	if n.ID == "" {
		return fmt.Errorf("add node: empty id")
	}
	if _, ok := g.nodes[n.ID]; ok {
		return fmt.Errorf("add node %q: %w", n.ID, ErrDuplicateNode)
	}
	g.nodes[n.ID] = n
	g.nodeOrder = append(g.nodeOrder, n.ID)
	return nil
}

// AddEdge inserts an edge. Both endpoints must already exist in the
// graph; otherwise ErrInvalidReference is returned and the graph is
// unchanged.
func (g *Graph) AddEdge(e *Edge) error {
	if e.ID == "" {
		return fmt.Errorf("add edge: empty id")
	}
	if _, ok := g.edges[e.ID]; ok {
		return fmt.Errorf("add edge %q: %w", e.ID, ErrDuplicateEdge)
	}
	if _, ok := g.nodes[e.SourceID]; !ok {
		return fmt.Errorf("add edge %q: source %q: %w", e.ID, e.SourceID, ErrInvalidReference)
	}
	if _, ok := g.nodes[e.TargetID]; !ok {
		return fmt.Errorf("add edge %q: target %q: %w", e.ID, e.TargetID, ErrInvalidReference)
	}
	g.edges[e.ID] = e
	g.edgeOrder = append(g.edgeOrder, e.ID)
	g.outgoing[e.SourceID] = append(g.outgoing[e.SourceID], e.ID)
	g.incoming[e.TargetID] = append(g.incoming[e.TargetID], e.ID)
	return nil
}

// Node returns the node with the given ID.
//
// The returned pointer aliases graph state; callers outside a
// construction or merge phase must not mutate it.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Edge returns the edge with the given ID.
func (g *Graph) Edge(id string) (*Edge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// HasNode reports whether a node with the given ID exists.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, 0, len(g.edgeOrder))
	for _, id := range g.edgeOrder {
		out = append(out, g.edges[id])
	}
	return out
}

// Outgoing returns the edges leaving the node, in insertion order.
func (g *Graph) Outgoing(nodeID string) []*Edge {
	ids := g.outgoing[nodeID]
	out := make([]*Edge, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.edges[id])
	}
	return out
}

// Incoming returns the edges entering the node, in insertion order.
func (g *Graph) Incoming(nodeID string) []*Edge {
	ids := g.incoming[nodeID]
	out := make([]*Edge, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.edges[id])
	}
	return out
}

// EdgesBetween returns the edges from source to target in insertion
// order. The ordered pair matters: an edge target→source does not count.
func (g *Graph) EdgesBetween(sourceID, targetID string) []*Edge {
	var out []*Edge
	for _, id := range g.outgoing[sourceID] {
		e := g.edges[id]
		if e.TargetID == targetID {
			out = append(out, e)
		}
	}
	return out
}

// NodesAtZoom returns the nodes whose zoom level equals the given level,
// in insertion order.
func (g *Graph) NodesAtZoom(level ZoomLevel) []*Node {
	var out []*Node
	for _, id := range g.nodeOrder {
		if g.nodes[id].ZoomLevel == level {
			out = append(out, g.nodes[id])
		}
	}
	return out
}

// MarkTraceMerged records that a trace has been folded into this graph.
func (g *Graph) MarkTraceMerged(traceID string) {
	g.mergedTraces[traceID] = struct{}{}
}

// HasMergedTrace reports whether a trace was already folded in.
func (g *Graph) HasMergedTrace(traceID string) bool {
	_, ok := g.mergedTraces[traceID]
	return ok
}

// Clone returns a deep copy of the graph. The copy may be mutated freely
// without affecting the original; the merge engine works on clones.
func (g *Graph) Clone() *Graph {
	c := New(g.version)
	c.nodeOrder = make([]string, len(g.nodeOrder))
	copy(c.nodeOrder, g.nodeOrder)
	c.edgeOrder = make([]string, len(g.edgeOrder))
	copy(c.edgeOrder, g.edgeOrder)
	for id, n := range g.nodes {
		c.nodes[id] = n.Clone()
	}
	for id, e := range g.edges {
		c.edges[id] = e.Clone()
	}
	for id, ids := range g.outgoing {
		c.outgoing[id] = append([]string(nil), ids...)
	}
	for id, ids := range g.incoming {
		c.incoming[id] = append([]string(nil), ids...)
	}
	for id := range g.mergedTraces {
		c.mergedTraces[id] = struct{}{}
	}
	return c
}
