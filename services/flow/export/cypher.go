// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package export serializes merged graphs for downstream analytics,
// either as Cypher statement scripts or pushed directly to a Neo4j
// instance.
package export

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/AleutianAI/flow-core/services/flow/graph"
	"github.com/AleutianAI/flow-core/services/flow/store"
)

var identifierSanitizer = regexp.MustCompile(`[^A-Za-z0-9_]`)

// BuildStatements renders a graph snapshot as an ordered Cypher script.
//
// Statement order matters for replay: the FlowGraph container is merged
// first, then every FlowNode is created, then edges are created against
// matched endpoints. Each statement is self-contained and terminated
// with a semicolon, so the script can be piped to cypher-shell as-is.
func BuildStatements(meta store.Metadata, g *graph.Graph) []string {
	stmts := make([]string, 0, 1+g.NodeCount()+g.EdgeCount())

	stmts = append(stmts, fmt.Sprintf(
		"MERGE (g:FlowGraph {graphId: %s}) SET g.version = %s, g.nodeCount = %d, g.edgeCount = %d, g.updatedAt = %d;",
		quote(meta.GraphID),
		quote(g.Version()),
		g.NodeCount(),
		g.EdgeCount(),
		meta.LastUpdatedAt.UnixMilli(),
	))

	for _, n := range g.Nodes() {
		props := []string{
			prop("id", n.ID),
			prop("graphId", meta.GraphID),
			prop("name", n.Name),
			prop("type", string(n.Type)),
			prop("serviceId", n.ServiceID),
			prop("visibility", string(n.Visibility)),
			fmt.Sprintf("zoomLevel: %d", n.ZoomLevel),
		}
		for _, k := range sortedKeys(n.Metadata) {
			props = append(props, metadataProp(k, n.Metadata[k]))
		}
		stmts = append(stmts, fmt.Sprintf(
			"CREATE (%s:FlowNode {%s});",
			sanitizeIdentifier(n.ID),
			strings.Join(props, ", "),
		))
	}

	for _, e := range g.Edges() {
		stmts = append(stmts, fmt.Sprintf(
			"MATCH (a:FlowNode {id: %s, graphId: %s}), (b:FlowNode {id: %s, graphId: %s}) CREATE (a)-[:%s {id: %s, executionCount: %d}]->(b);",
			quote(e.SourceID), quote(meta.GraphID),
			quote(e.TargetID), quote(meta.GraphID),
			sanitizeIdentifier(string(e.Type)),
			quote(e.ID),
			e.ExecutionCount,
		))
	}
	return stmts
}

// sanitizeIdentifier maps an arbitrary ID onto a legal Cypher variable
// or relationship type name.
func sanitizeIdentifier(s string) string {
	out := identifierSanitizer.ReplaceAllString(s, "_")
	if out == "" || (out[0] >= '0' && out[0] <= '9') {
		out = "n_" + out
	}
	return out
}

// quote renders a string literal. Backslashes are escaped before
// quotes so a literal backslash cannot absorb the quote escape.
func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", `\'`)
	return "'" + s + "'"
}

func prop(key, value string) string {
	return fmt.Sprintf("%s: %s", key, quote(value))
}

// metadataProp renders an open-ended metadata value. Numbers and bools
// pass through as Cypher literals; anything structured is carried as a
// JSON string so nothing is silently dropped.
func metadataProp(key string, value any) string {
	key = sanitizeIdentifier(key)
	switch v := value.(type) {
	case string:
		return prop(key, v)
	case bool:
		return fmt.Sprintf("%s: %t", key, v)
	case int, int32, int64:
		return fmt.Sprintf("%s: %d", key, v)
	case float32, float64:
		return fmt.Sprintf("%s: %v", key, v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return prop(key, fmt.Sprintf("%v", v))
		}
		return prop(key, string(encoded))
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
