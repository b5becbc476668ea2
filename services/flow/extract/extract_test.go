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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/flow-core/services/flow/graph"
)

func addNode(t *testing.T, g *graph.Graph, id string, typ graph.NodeType, zoom graph.ZoomLevel) {
	t.Helper()
	require.NoError(t, g.AddNode(&graph.Node{
		ID: id, Name: id, Type: typ,
		ServiceID: "svc", Visibility: graph.VisibilityPublic, ZoomLevel: zoom,
	}))
}

func addEdge(t *testing.T, g *graph.Graph, id, from, to string) {
	t.Helper()
	require.NoError(t, g.AddEdge(&graph.Edge{ID: id, SourceID: from, TargetID: to, Type: graph.EdgeTypeCall}))
}

func layeredGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New("1")
	addNode(t, g, "ep", graph.NodeTypeEndpoint, graph.ZoomBusiness)
	addNode(t, g, "svc", graph.NodeTypeService, graph.ZoomService)
	addNode(t, g, "pub", graph.NodeTypeMethod, graph.ZoomPublic)
	addNode(t, g, "priv", graph.NodeTypeMethod, graph.ZoomPrivate)
	addNode(t, g, "rt", graph.NodeTypeMethod, graph.ZoomRuntime)
	addEdge(t, g, "e1", "ep", "svc")
	addEdge(t, g, "e2", "svc", "pub")
	addEdge(t, g, "e3", "pub", "priv")
	addEdge(t, g, "e4", "priv", "rt")
	return g
}

func TestZoomSlice_IncludesOneLevelBelow(t *testing.T) {
	g := layeredGraph(t)

	sliced, err := ZoomSlice(g, graph.ZoomBusiness)
	require.NoError(t, err)
	assert.Equal(t, 2, sliced.NodeCount(), "level 1 shows levels 1 and 2")
	assert.True(t, sliced.HasNode("ep"))
	assert.True(t, sliced.HasNode("svc"))
	assert.False(t, sliced.HasNode("pub"))

	sliced, err = ZoomSlice(g, graph.ZoomPrivate)
	require.NoError(t, err)
	assert.Equal(t, 5, sliced.NodeCount())
}

func TestZoomSlice_EdgesClosedOverNodes(t *testing.T) {
	g := layeredGraph(t)

	sliced, err := ZoomSlice(g, graph.ZoomService)
	require.NoError(t, err)
	// ep, svc, pub survive; e1 and e2 connect survivors, e3 dangles.
	assert.Equal(t, 3, sliced.NodeCount())
	assert.Equal(t, 2, sliced.EdgeCount())
	_, ok := sliced.Edge("e3")
	assert.False(t, ok)
}

func TestZoomSlice_ExcludesUnsetNodes(t *testing.T) {
	g := graph.New("1")
	addNode(t, g, "ep", graph.NodeTypeEndpoint, graph.ZoomBusiness)
	addNode(t, g, "raw", graph.NodeTypeMethod, graph.ZoomUnset)

	sliced, err := ZoomSlice(g, graph.ZoomRuntime)
	require.NoError(t, err)
	assert.False(t, sliced.HasNode("raw"), "unmerged nodes have no zoom and no view")
}

func TestZoomSlice_LevelZeroIsBusinessSummary(t *testing.T) {
	g := layeredGraph(t)

	sliced, err := ZoomSlice(g, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, sliced.NodeCount(), "level 0 shows only business nodes")
	assert.True(t, sliced.HasNode("ep"))
}

func TestZoomSlice_InvalidLevel(t *testing.T) {
	g := layeredGraph(t)
	_, err := ZoomSlice(g, -1)
	assert.Error(t, err)
	_, err = ZoomSlice(g, 6)
	assert.Error(t, err)
}

func TestZoomSlice_ReturnsIndependentCopy(t *testing.T) {
	g := layeredGraph(t)
	sliced, err := ZoomSlice(g, graph.ZoomRuntime)
	require.NoError(t, err)

	n, _ := sliced.Node("ep")
	n.Name = "mutated"

	orig, _ := g.Node("ep")
	assert.Equal(t, "ep", orig.Name)
}

func diamondGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New("1")
	addNode(t, g, "ep", graph.NodeTypeEndpoint, graph.ZoomBusiness)
	addNode(t, g, "left", graph.NodeTypeMethod, graph.ZoomPublic)
	addNode(t, g, "right", graph.NodeTypeMethod, graph.ZoomPublic)
	addNode(t, g, "sink", graph.NodeTypeMethod, graph.ZoomPrivate)
	addEdge(t, g, "e1", "ep", "left")
	addEdge(t, g, "e2", "ep", "right")
	addEdge(t, g, "e3", "left", "sink")
	addEdge(t, g, "e4", "right", "sink")
	return g
}

func TestExtractFlow_DiamondDepthsAndParents(t *testing.T) {
	g := diamondGraph(t)
	ep, _ := g.Node("ep")

	flow := ExtractFlow(g, ep)
	require.Len(t, flow.Steps, 4)

	byID := map[string]FlowStep{}
	for _, s := range flow.Steps {
		byID[s.NodeID] = s
	}
	assert.Equal(t, 0, byID["ep"].Depth)
	assert.Equal(t, 1, byID["left"].Depth)
	assert.Equal(t, 1, byID["right"].Depth)
	assert.Equal(t, 2, byID["sink"].Depth)
	assert.ElementsMatch(t, []string{"left", "right"}, byID["sink"].ParentNodeIDs,
		"a rejoining node keeps every minimum-depth parent")

	// Steps come out shallow to deep.
	for i := 1; i < len(flow.Steps); i++ {
		assert.GreaterOrEqual(t, flow.Steps[i].Depth, flow.Steps[i-1].Depth)
	}
}

func TestExtractFlow_CycleTerminates(t *testing.T) {
	g := graph.New("1")
	addNode(t, g, "ep", graph.NodeTypeEndpoint, graph.ZoomBusiness)
	addNode(t, g, "a", graph.NodeTypeMethod, graph.ZoomPublic)
	addNode(t, g, "b", graph.NodeTypeMethod, graph.ZoomPublic)
	addEdge(t, g, "e1", "ep", "a")
	addEdge(t, g, "e2", "a", "b")
	addEdge(t, g, "e3", "b", "a")

	ep, _ := g.Node("ep")
	flow := ExtractFlow(g, ep)
	require.Len(t, flow.Steps, 3, "each node appears exactly once despite the cycle")
}

func TestExtractFlows_OnePerEntryPoint(t *testing.T) {
	g := diamondGraph(t)
	addNode(t, g, "topic.events", graph.NodeTypeTopic, graph.ZoomBusiness)
	addEdge(t, g, "e5", "topic.events", "sink")

	flows := ExtractFlows(g)
	require.Len(t, flows, 2)
	assert.Equal(t, "ep", flows[0].EntryNodeID, "entry order follows node insertion order")
	assert.Equal(t, "topic.events", flows[1].EntryNodeID)
	require.Len(t, flows[1].Steps, 2)
}

func TestExtractFlows_NoEntryPoints(t *testing.T) {
	g := graph.New("1")
	addNode(t, g, "a", graph.NodeTypeMethod, graph.ZoomPublic)
	assert.Empty(t, ExtractFlows(g))
}
