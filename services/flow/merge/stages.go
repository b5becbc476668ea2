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

import (
	"fmt"

	"github.com/AleutianAI/flow-core/services/flow/graph"
	"github.com/AleutianAI/flow-core/services/flow/runtime"
)

// Node metadata keys written by the stages.
const (
	metaDuration       = "duration"
	metaExecutionCount = "executionCount"
	metaCheckpoints    = "checkpoints"
	metaErrorCount     = "errorCount"
	metaLastError      = "lastError"
	metaAsyncHops      = "asyncHops"
)

// Apply folds a trace snapshot into a graph snapshot and returns the new
// graph. The input graph is not modified.
//
// The transformation is a fixed pipeline of stages, each iterating the
// trace's events in submission order. Given the same inputs the output
// is identical; a trace already folded into the graph leaves it
// unchanged, so applying the same trace twice equals applying it once.
func Apply(base *graph.Graph, tr runtime.Trace) *graph.Graph {
	g := base.Clone()
	if g.HasMergedTrace(tr.TraceID) {
		return g
	}

	addRuntimeNodes(g, tr)
	addRuntimeEdges(g, tr)
	applyDurations(g, tr)
	applyCheckpoints(g, tr)
	applyAsyncHops(g, tr)
	applyErrors(g, tr)
	applyZoomPolicy(g)

	g.MarkTraceMerged(tr.TraceID)
	return g
}

// addRuntimeNodes synthesizes a node for every event whose node ID the
// graph does not know. Existing nodes are never overwritten. Synthetic
// nodes are METHOD/PUBLIC at the runtime zoom level.
func addRuntimeNodes(g *graph.Graph, tr runtime.Trace) {
	for _, ev := range tr.Events {
		if ev.NodeID == "" || g.HasNode(ev.NodeID) {
			continue
		}
		// AddNode cannot fail here: the ID was just checked absent.
		_ = g.AddNode(&graph.Node{
			ID:         ev.NodeID,
			Name:       ev.NodeID,
			Type:       graph.NodeTypeMethod,
			ServiceID:  ev.NodeID,
			Visibility: graph.VisibilityPublic,
			ZoomLevel:  graph.ZoomRuntime,
		})
	}
}

// addRuntimeEdges derives control transfers from consecutive event
// pairs: an enter immediately preceded by an enter, or a checkpoint
// immediately preceded by a checkpoint. Each ordered node pair gets a
// RUNTIME_CALL edge when no edge of any type connects it yet, and the
// first edge between the pair has its execution count incremented
// whether pre-existing or fresh.
func addRuntimeEdges(g *graph.Graph, tr runtime.Trace) {
	for i := 1; i < len(tr.Events); i++ {
		prev, cur := tr.Events[i-1], tr.Events[i]
		transfer := (prev.Type == runtime.EventMethodEnter && cur.Type == runtime.EventMethodEnter) ||
			(prev.Type == runtime.EventCheckpoint && cur.Type == runtime.EventCheckpoint)
		if !transfer || prev.NodeID == "" || cur.NodeID == "" || prev.NodeID == cur.NodeID {
			continue
		}

		between := g.EdgesBetween(prev.NodeID, cur.NodeID)
		if len(between) == 0 {
			edge := &graph.Edge{
				ID:       fmt.Sprintf("runtime-call:%s->%s", prev.NodeID, cur.NodeID),
				SourceID: prev.NodeID,
				TargetID: cur.NodeID,
				Type:     graph.EdgeTypeRuntimeCall,
			}
			_ = g.AddEdge(edge)
			between = []*graph.Edge{edge}
		}
		between[0].ExecutionCount++
	}
}

// applyDurations matches METHOD_EXIT events to the METHOD_ENTER with the
// same span ID and folds exit-enter into the node's running average
// duration, incrementing its execution count alongside.
func applyDurations(g *graph.Graph, tr runtime.Trace) {
	enters := make(map[string]runtime.Event)
	for _, ev := range tr.Events {
		if ev.Type == runtime.EventMethodEnter && ev.SpanID != "" {
			if _, seen := enters[ev.SpanID]; !seen {
				enters[ev.SpanID] = ev
			}
		}
	}

	for _, ev := range tr.Events {
		if ev.Type != runtime.EventMethodExit || ev.SpanID == "" {
			continue
		}
		enter, ok := enters[ev.SpanID]
		if !ok || enter.Timestamp.After(ev.Timestamp) {
			continue
		}
		node, ok := g.Node(enter.NodeID)
		if !ok {
			continue
		}
		durationMS := float64(ev.Timestamp.Sub(enter.Timestamp).Milliseconds())
		count := metaInt64(node, metaExecutionCount)
		avg := metaFloat64(node, metaDuration)
		node.SetMetadata(metaDuration, (avg*float64(count)+durationMS)/float64(count+1))
		node.SetMetadata(metaExecutionCount, count+1)
	}
}

// applyCheckpoints appends (name, timestamp, data) records to the target
// node's checkpoint list, in event order.
func applyCheckpoints(g *graph.Graph, tr runtime.Trace) {
	for _, ev := range tr.Events {
		if ev.Type != runtime.EventCheckpoint {
			continue
		}
		node, ok := g.Node(ev.NodeID)
		if !ok {
			continue
		}
		name := "unnamed"
		if v, asserted := ev.Attributes["name"].(string); asserted && v != "" {
			name = v
		}
		record := map[string]any{
			"name":      name,
			"timestamp": ev.Timestamp.UnixMilli(),
		}
		if len(ev.Attributes) > 0 {
			record["data"] = ev.Attributes
		}
		list, _ := node.Metadata[metaCheckpoints].([]any)
		node.SetMetadata(metaCheckpoints, append(list, record))
	}
}

// applyAsyncHops pairs PRODUCE_TOPIC with CONSUME_TOPIC events sharing a
// correlation ID. Each hop is recorded as an attribute on the producing
// edge, and a FLOWS_TO edge is derived when nothing connects producer to
// consumer yet.
func applyAsyncHops(g *graph.Graph, tr runtime.Trace) {
	for _, hop := range pairAsyncEvents(tr.Events) {
		if !g.HasNode(hop.ProducerNodeID) || !g.HasNode(hop.ConsumerNodeID) {
			continue
		}
		if len(g.EdgesBetween(hop.ProducerNodeID, hop.ConsumerNodeID)) == 0 {
			_ = g.AddEdge(&graph.Edge{
				ID:       fmt.Sprintf("flows-to:%s->%s", hop.ProducerNodeID, hop.ConsumerNodeID),
				SourceID: hop.ProducerNodeID,
				TargetID: hop.ConsumerNodeID,
				Type:     graph.EdgeTypeFlowsTo,
			})
		}
		edge := producingEdge(g, hop.ProducerNodeID, hop.ConsumerNodeID)
		record := map[string]any{
			"correlationId":  hop.CorrelationID,
			"producerNodeId": hop.ProducerNodeID,
			"consumerNodeId": hop.ConsumerNodeID,
			"producedAt":     hop.ProducedAt.UnixMilli(),
			"consumedAt":     hop.ConsumedAt.UnixMilli(),
		}
		list, _ := edge.Attributes[metaAsyncHops].([]any)
		edge.SetAttribute(metaAsyncHops, append(list, record))
	}
}

// pairAsyncEvents matches each consume to the earliest unmatched produce
// with the same correlation ID, in submission order.
func pairAsyncEvents(events []runtime.Event) []runtime.AsyncHop {
	type key struct{ corr string }
	pending := make(map[key][]runtime.Event)
	var hops []runtime.AsyncHop

	for _, ev := range events {
		corr := correlationOf(ev)
		if corr == "" {
			continue
		}
		k := key{corr}
		switch ev.Type {
		case runtime.EventProduceTopic:
			pending[k] = append(pending[k], ev)
		case runtime.EventConsumeTopic:
			queue := pending[k]
			if len(queue) == 0 {
				continue
			}
			produce := queue[0]
			pending[k] = queue[1:]
			hops = append(hops, runtime.AsyncHop{
				CorrelationID:  corr,
				ProducerNodeID: produce.NodeID,
				ConsumerNodeID: ev.NodeID,
				ProducedAt:     produce.Timestamp,
				ConsumedAt:     ev.Timestamp,
			})
		}
	}
	return hops
}

func correlationOf(ev runtime.Event) string {
	if v, ok := ev.Attributes["correlationId"].(string); ok && v != "" {
		return v
	}
	return ev.CorrelationID
}

// producingEdge picks the edge carrying the hop record: the first
// PRODUCES edge leaving the producer, else the first edge from producer
// to consumer (the derived FLOWS_TO at minimum).
func producingEdge(g *graph.Graph, producerID, consumerID string) *graph.Edge {
	for _, e := range g.Outgoing(producerID) {
		if e.Type == graph.EdgeTypeProduces {
			return e
		}
	}
	return g.EdgesBetween(producerID, consumerID)[0]
}

// applyErrors increments the target node's error count per ERROR event
// and keeps the most recent error's message and class.
func applyErrors(g *graph.Graph, tr runtime.Trace) {
	for _, ev := range tr.Events {
		if ev.Type != runtime.EventError {
			continue
		}
		node, ok := g.Node(ev.NodeID)
		if !ok {
			continue
		}
		node.SetMetadata(metaErrorCount, metaInt64(node, metaErrorCount)+1)
		node.SetMetadata(metaLastError, map[string]any{
			"message": ev.ErrorMessage,
			"type":    ev.ErrorType,
		})
	}
}

func metaInt64(n *graph.Node, key string) int64 {
	switch v := n.Metadata[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func metaFloat64(n *graph.Node, key string) float64 {
	switch v := n.Metadata[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}
