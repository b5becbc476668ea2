// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/flow-core/services/flow/graph"
	"github.com/AleutianAI/flow-core/services/flow/store"
)

func exportGraph(t *testing.T) (store.Metadata, *graph.Graph) {
	t.Helper()
	g := graph.New("2")
	require.NoError(t, g.AddNode(&graph.Node{
		ID: "api.orders", Name: "POST /orders", Type: graph.NodeTypeEndpoint,
		ServiceID: "order", Visibility: graph.VisibilityPublic, ZoomLevel: graph.ZoomBusiness,
	}))
	require.NoError(t, g.AddNode(&graph.Node{
		ID: "order.Service.place", Name: "place", Type: graph.NodeTypeMethod,
		ServiceID: "order", Visibility: graph.VisibilityPublic, ZoomLevel: graph.ZoomPublic,
		Metadata: map[string]any{"duration": 12.5, "executionCount": int64(3)},
	}))
	require.NoError(t, g.AddEdge(&graph.Edge{
		ID: "e1", SourceID: "api.orders", TargetID: "order.Service.place",
		Type: graph.EdgeTypeCall, ExecutionCount: 3,
	}))
	meta := store.Metadata{
		GraphID:       "orders",
		Version:       "2",
		LastUpdatedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
	return meta, g
}

func TestBuildStatements_Order(t *testing.T) {
	meta, g := exportGraph(t)
	stmts := BuildStatements(meta, g)
	require.Len(t, stmts, 4, "one graph merge, two node creates, one edge create")

	assert.True(t, strings.HasPrefix(stmts[0], "MERGE (g:FlowGraph {graphId: 'orders'})"))
	assert.Contains(t, stmts[0], "g.nodeCount = 2")
	assert.True(t, strings.HasPrefix(stmts[1], "CREATE ("))
	assert.Contains(t, stmts[1], ":FlowNode")
	assert.True(t, strings.HasPrefix(stmts[3], "MATCH (a:FlowNode {id: 'api.orders'"))
	assert.Contains(t, stmts[3], "CREATE (a)-[:CALL {id: 'e1', executionCount: 3}]->(b)")

	for _, s := range stmts {
		assert.True(t, strings.HasSuffix(s, ";"), "every statement is terminated: %s", s)
	}
}

func TestBuildStatements_SanitizesIdentifiers(t *testing.T) {
	meta, g := exportGraph(t)
	stmts := BuildStatements(meta, g)

	// "api.orders" must appear as a variable with the dot replaced.
	assert.Contains(t, stmts[1], "CREATE (api_orders:FlowNode")
	// But property values keep the original ID.
	assert.Contains(t, stmts[1], "id: 'api.orders'")
}

func TestBuildStatements_EscapesQuotesAndBackslashes(t *testing.T) {
	g := graph.New("1")
	require.NoError(t, g.AddNode(&graph.Node{
		ID: "n1", Name: "O'Brien's handler", Type: graph.NodeTypeMethod,
		ServiceID: "svc", Visibility: graph.VisibilityPublic, ZoomLevel: graph.ZoomPublic,
	}))
	require.NoError(t, g.AddNode(&graph.Node{
		ID: "n2", Name: `win\path`, Type: graph.NodeTypeMethod,
		ServiceID: "svc", Visibility: graph.VisibilityPublic, ZoomLevel: graph.ZoomPublic,
	}))
	stmts := BuildStatements(store.Metadata{GraphID: "g"}, g)
	assert.Contains(t, stmts[2], `name: 'win\\path'`)

	assert.Contains(t, stmts[1], `name: 'O\'Brien\'s handler'`)
}

func TestBuildStatements_MetadataTypes(t *testing.T) {
	meta, g := exportGraph(t)
	stmts := BuildStatements(meta, g)

	// Numeric metadata is unquoted, and keys come out sorted.
	assert.Contains(t, stmts[2], "duration: 12.5")
	assert.Contains(t, stmts[2], "executionCount: 3")
	assert.Less(t, strings.Index(stmts[2], "duration:"), strings.Index(stmts[2], "executionCount:"))
}

func TestBuildStatements_StructuredMetadataAsJSON(t *testing.T) {
	g := graph.New("1")
	require.NoError(t, g.AddNode(&graph.Node{
		ID: "n1", Name: "n1", Type: graph.NodeTypeMethod,
		ServiceID: "svc", Visibility: graph.VisibilityPublic, ZoomLevel: graph.ZoomPublic,
		Metadata: map[string]any{
			"lastError": map[string]any{"message": "boom", "type": "E"},
		},
	}))
	stmts := BuildStatements(store.Metadata{GraphID: "g"}, g)
	assert.Contains(t, stmts[1], `lastError: '{"message":"boom","type":"E"}'`)
}

func TestSanitizeIdentifier(t *testing.T) {
	assert.Equal(t, "order_Service_place", sanitizeIdentifier("order.Service.place"))
	assert.Equal(t, "a_b_c", sanitizeIdentifier("a-b c"))
	assert.Equal(t, "n_1x", sanitizeIdentifier("1x"), "leading digits get a prefix")
	assert.Equal(t, "n_", sanitizeIdentifier(""))
}
