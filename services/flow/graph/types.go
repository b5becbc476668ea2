// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the flow graph value model.
//
// A Graph is a versioned directed multigraph of typed nodes and typed
// edges representing the static (and runtime-enriched) structure of an
// application. The model is pure value code: no I/O, no locking. A graph
// is mutated only while it is being constructed or merged; once published
// through the store it is treated as an immutable snapshot.
//
// Thread Safety:
//
//	Graph is NOT safe for concurrent mutation. Share only via snapshots
//	(Clone) that are never written after publication.
package graph

import "fmt"

// NodeType classifies a node in the flow graph.
type NodeType string

// Node types accepted from submitters or synthesized during merge.
const (
	NodeTypeEndpoint      NodeType = "ENDPOINT"
	NodeTypeTopic         NodeType = "TOPIC"
	NodeTypeService       NodeType = "SERVICE"
	NodeTypeClass         NodeType = "CLASS"
	NodeTypeMethod        NodeType = "METHOD"
	NodeTypePrivateMethod NodeType = "PRIVATE_METHOD"
	NodeTypeInterface     NodeType = "INTERFACE"
	NodeTypeField         NodeType = "FIELD"
	NodeTypeConstructor   NodeType = "CONSTRUCTOR"
)

var nodeTypes = map[NodeType]bool{
	NodeTypeEndpoint:      true,
	NodeTypeTopic:         true,
	NodeTypeService:       true,
	NodeTypeClass:         true,
	NodeTypeMethod:        true,
	NodeTypePrivateMethod: true,
	NodeTypeInterface:     true,
	NodeTypeField:         true,
	NodeTypeConstructor:   true,
}

// ParseNodeType validates a submitted node type string.
//
// Unknown values are an error rather than a silent default: submitters
// must be told their enum is wrong, not handed a graph they did not ask
// for.
func ParseNodeType(s string) (NodeType, error) {
	t := NodeType(s)
	if !nodeTypes[t] {
		return "", fmt.Errorf("%w: node type %q", ErrUnknownEnum, s)
	}
	return t, nil
}

// EdgeType classifies a directed relationship between two nodes.
type EdgeType string

// Edge types. RUNTIME_CALL and FLOWS_TO are only ever added by the merge
// engine; the rest arrive with static submissions.
const (
	EdgeTypeCall        EdgeType = "CALL"
	EdgeTypeHandles     EdgeType = "HANDLES"
	EdgeTypeProduces    EdgeType = "PRODUCES"
	EdgeTypeConsumes    EdgeType = "CONSUMES"
	EdgeTypeBelongsTo   EdgeType = "BELONGS_TO"
	EdgeTypeDefines     EdgeType = "DEFINES"
	EdgeTypeRuntimeCall EdgeType = "RUNTIME_CALL"
	EdgeTypeDependsOn   EdgeType = "DEPENDS_ON"
	EdgeTypeFlowsTo     EdgeType = "FLOWS_TO"
)

var edgeTypes = map[EdgeType]bool{
	EdgeTypeCall:        true,
	EdgeTypeHandles:     true,
	EdgeTypeProduces:    true,
	EdgeTypeConsumes:    true,
	EdgeTypeBelongsTo:   true,
	EdgeTypeDefines:     true,
	EdgeTypeRuntimeCall: true,
	EdgeTypeDependsOn:   true,
	EdgeTypeFlowsTo:     true,
}

// ParseEdgeType validates a submitted edge type string.
func ParseEdgeType(s string) (EdgeType, error) {
	t := EdgeType(s)
	if !edgeTypes[t] {
		return "", fmt.Errorf("%w: edge type %q", ErrUnknownEnum, s)
	}
	return t, nil
}

// Visibility is the access visibility of a node's underlying symbol.
type Visibility string

// Visibility values.
const (
	VisibilityPublic         Visibility = "PUBLIC"
	VisibilityPrivate        Visibility = "PRIVATE"
	VisibilityProtected      Visibility = "PROTECTED"
	VisibilityPackagePrivate Visibility = "PACKAGE_PRIVATE"
)

var visibilities = map[Visibility]bool{
	VisibilityPublic:         true,
	VisibilityPrivate:        true,
	VisibilityProtected:      true,
	VisibilityPackagePrivate: true,
}

// ParseVisibility validates a submitted visibility string.
func ParseVisibility(s string) (Visibility, error) {
	v := Visibility(s)
	if !visibilities[v] {
		return "", fmt.Errorf("%w: visibility %q", ErrUnknownEnum, s)
	}
	return v, nil
}

// ZoomLevel indicates the coarseness at which a node participates in
// visualization. Level 1 is the business view, level 5 the runtime view.
// ZoomUnset means the merge engine has not assigned a level yet.
type ZoomLevel int

// Zoom levels.
const (
	ZoomUnset    ZoomLevel = 0
	ZoomBusiness ZoomLevel = 1
	ZoomService  ZoomLevel = 2
	ZoomPublic   ZoomLevel = 3
	ZoomPrivate  ZoomLevel = 4
	ZoomRuntime  ZoomLevel = 5
)

// Valid reports whether the level is one of the five assigned levels.
func (z ZoomLevel) Valid() bool {
	return z >= ZoomBusiness && z <= ZoomRuntime
}

// Node is a vertex of the flow graph.
//
// ZoomLevel is assigned by the merge engine's zoom policy, never by the
// submitter. Metadata is an open extension point (duration, error counts,
// checkpoints, custom attributes); writes replace prior values for the
// same key.
type Node struct {
	ID         string
	Name       string
	Type       NodeType
	ServiceID  string
	Visibility Visibility
	ZoomLevel  ZoomLevel
	Metadata   map[string]any
}

// SetMetadata stores a metadata value, replacing any prior value for the
// same key. The map is allocated lazily.
func (n *Node) SetMetadata(key string, value any) {
	if n.Metadata == nil {
		n.Metadata = make(map[string]any)
	}
	n.Metadata[key] = value
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	c.Metadata = cloneValueMap(n.Metadata)
	return &c
}

// Edge is a directed typed edge of the flow graph.
//
// ExecutionCount is non-negative and monotonically non-decreasing over
// the graph's lifetime. Attributes carries merge-derived annotations such
// as async hops.
type Edge struct {
	ID             string
	SourceID       string
	TargetID       string
	Type           EdgeType
	ExecutionCount int64
	Attributes     map[string]any
}

// SetAttribute stores an edge attribute, replacing any prior value.
func (e *Edge) SetAttribute(key string, value any) {
	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	e.Attributes[key] = value
}

// Clone returns a deep copy of the edge.
func (e *Edge) Clone() *Edge {
	c := *e
	c.Attributes = cloneValueMap(e.Attributes)
	return &c
}

// cloneValueMap deep-copies a metadata map. Nested maps and slices are
// copied; scalar values are shared (they are immutable).
func cloneValueMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneValueMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
