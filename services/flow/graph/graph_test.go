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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNode(id string, t NodeType) *Node {
	return &Node{
		ID:         id,
		Name:       id,
		Type:       t,
		ServiceID:  "svc",
		Visibility: VisibilityPublic,
	}
}

func TestGraph_AddNode_Duplicate(t *testing.T) {
	g := New("1")
	require.NoError(t, g.AddNode(testNode("a", NodeTypeMethod)))

	err := g.AddNode(testNode("a", NodeTypeMethod))
	assert.ErrorIs(t, err, ErrDuplicateNode)
	assert.Equal(t, 1, g.NodeCount())
}

func TestGraph_AddEdge_RequiresEndpoints(t *testing.T) {
	g := New("1")
	require.NoError(t, g.AddNode(testNode("a", NodeTypeMethod)))

	err := g.AddEdge(&Edge{ID: "e1", SourceID: "a", TargetID: "missing", Type: EdgeTypeCall})
	assert.ErrorIs(t, err, ErrInvalidReference)
	assert.Equal(t, 0, g.EdgeCount())

	err = g.AddEdge(&Edge{ID: "e2", SourceID: "missing", TargetID: "a", Type: EdgeTypeCall})
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestGraph_EdgesBetween_And_Adjacency(t *testing.T) {
	g := New("1")
	require.NoError(t, g.AddNode(testNode("a", NodeTypeEndpoint)))
	require.NoError(t, g.AddNode(testNode("b", NodeTypeMethod)))
	require.NoError(t, g.AddNode(testNode("c", NodeTypeMethod)))
	require.NoError(t, g.AddEdge(&Edge{ID: "e1", SourceID: "a", TargetID: "b", Type: EdgeTypeCall}))
	require.NoError(t, g.AddEdge(&Edge{ID: "e2", SourceID: "a", TargetID: "b", Type: EdgeTypeRuntimeCall}))
	require.NoError(t, g.AddEdge(&Edge{ID: "e3", SourceID: "b", TargetID: "c", Type: EdgeTypeCall}))

	between := g.EdgesBetween("a", "b")
	require.Len(t, between, 2)
	assert.Equal(t, "e1", between[0].ID, "first edge between a pair is the one added first")

	out := g.Outgoing("a")
	require.Len(t, out, 2)
	in := g.Incoming("c")
	require.Len(t, in, 1)
	assert.Equal(t, "e3", in[0].ID)

	assert.Empty(t, g.EdgesBetween("b", "a"), "edges are directed")
}

func TestGraph_InsertionOrderPreserved(t *testing.T) {
	g := New("1")
	ids := []string{"z", "a", "m", "b"}
	for _, id := range ids {
		require.NoError(t, g.AddNode(testNode(id, NodeTypeMethod)))
	}

	var got []string
	for _, n := range g.Nodes() {
		got = append(got, n.ID)
	}
	assert.Equal(t, ids, got)
}

func TestGraph_Clone_IsDeep(t *testing.T) {
	g := New("1")
	node := testNode("a", NodeTypeMethod)
	node.SetMetadata("executionCount", int64(3))
	require.NoError(t, g.AddNode(node))
	require.NoError(t, g.AddNode(testNode("b", NodeTypeMethod)))
	require.NoError(t, g.AddEdge(&Edge{ID: "e1", SourceID: "a", TargetID: "b", Type: EdgeTypeCall, ExecutionCount: 1}))
	g.MarkTraceMerged("t-1")

	clone := g.Clone()

	cn, ok := clone.Node("a")
	require.True(t, ok)
	cn.SetMetadata("executionCount", int64(99))
	ce, ok := clone.Edge("e1")
	require.True(t, ok)
	ce.ExecutionCount = 42

	orig, _ := g.Node("a")
	assert.Equal(t, int64(3), orig.Metadata["executionCount"], "clone mutation must not leak into the original")
	oe, _ := g.Edge("e1")
	assert.Equal(t, int64(1), oe.ExecutionCount)
	assert.True(t, clone.HasMergedTrace("t-1"), "merged trace set survives cloning")
}

func TestGraph_NodesAtZoom(t *testing.T) {
	g := New("1")
	endpoint := testNode("ep", NodeTypeEndpoint)
	endpoint.ZoomLevel = ZoomBusiness
	method := testNode("m", NodeTypeMethod)
	method.ZoomLevel = ZoomPublic
	require.NoError(t, g.AddNode(endpoint))
	require.NoError(t, g.AddNode(method))

	atBusiness := g.NodesAtZoom(ZoomBusiness)
	require.Len(t, atBusiness, 1)
	assert.Equal(t, "ep", atBusiness[0].ID)
}

func TestParseEnums_Unknown(t *testing.T) {
	_, err := ParseNodeType("WIDGET")
	assert.ErrorIs(t, err, ErrUnknownEnum)

	_, err = ParseEdgeType("TELEPORTS")
	assert.ErrorIs(t, err, ErrUnknownEnum)

	_, err = ParseVisibility("HIDDEN")
	assert.ErrorIs(t, err, ErrUnknownEnum)
}
