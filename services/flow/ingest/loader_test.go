// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/flow-core/services/flow/graph"
	"github.com/AleutianAI/flow-core/services/flow/runtime"
)

func TestBuildGraph_Defaults(t *testing.T) {
	g, err := BuildGraph(StaticGraphPayload{
		GraphID: "orders",
		Nodes: []NodePayload{
			{ID: "order-service.OrderController.create", Type: "METHOD"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "1", g.Version(), "omitted version defaults")

	n, ok := g.Node("order-service.OrderController.create")
	require.True(t, ok)
	assert.Equal(t, "order-service.OrderController.create", n.Name, "name defaults to the ID")
	assert.Equal(t, graph.VisibilityPublic, n.Visibility)
	assert.Equal(t, "order-service", n.ServiceID, "service derived from ID prefix")
	assert.Equal(t, graph.ZoomUnset, n.ZoomLevel, "zoom is assigned at merge, not ingest")
}

func TestBuildGraph_DataFields(t *testing.T) {
	g, err := BuildGraph(StaticGraphPayload{
		GraphID: "orders",
		Version: "3",
		Nodes: []NodePayload{
			{
				ID:   "n1",
				Type: "METHOD",
				Name: "create",
				Data: map[string]any{
					"visibility": "PRIVATE",
					"serviceId":  "billing",
					"owner":      "payments-team",
				},
			},
		},
	})
	require.NoError(t, err)

	n, _ := g.Node("n1")
	assert.Equal(t, graph.VisibilityPrivate, n.Visibility)
	assert.Equal(t, "billing", n.ServiceID)
	assert.Equal(t, "payments-team", n.Metadata["owner"], "unrecognized data keys land in metadata")
	_, claimed := n.Metadata["visibility"]
	assert.False(t, claimed, "consumed data keys stay out of metadata")
}

func TestBuildGraph_UnknownEnumRejected(t *testing.T) {
	_, err := BuildGraph(StaticGraphPayload{
		GraphID: "orders",
		Nodes:   []NodePayload{{ID: "n1", Type: "WIDGET"}},
	})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = BuildGraph(StaticGraphPayload{
		GraphID: "orders",
		Nodes:   []NodePayload{{ID: "n1", Type: "METHOD"}, {ID: "n2", Type: "METHOD"}},
		Edges:   []EdgePayload{{ID: "e1", From: "n1", To: "n2", Type: "TELEPORTS"}},
	})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestBuildGraph_DanglingEdgeRejected(t *testing.T) {
	_, err := BuildGraph(StaticGraphPayload{
		GraphID: "orders",
		Nodes:   []NodePayload{{ID: "n1", Type: "METHOD"}},
		Edges:   []EdgePayload{{ID: "e1", From: "n1", To: "ghost", Type: "CALL"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.ErrorIs(t, err, graph.ErrInvalidReference)
}

func TestEventFromPayload_Synonyms(t *testing.T) {
	for submitted, want := range map[string]runtime.EventType{
		"START":         runtime.EventMethodEnter,
		"END":           runtime.EventMethodExit,
		"METHOD_ENTER":  runtime.EventMethodEnter,
		"ASYNC_SEND":    runtime.EventProduceTopic,
		"ASYNC_RECEIVE": runtime.EventConsumeTopic,
	} {
		ev, err := EventFromPayload(EventPayload{Type: submitted, NodeID: "n1"}, time.Now())
		require.NoError(t, err, submitted)
		assert.Equal(t, want, ev.Type, submitted)
	}
}

func TestEventFromPayload_UnknownTypeRejected(t *testing.T) {
	_, err := EventFromPayload(EventPayload{Type: "TELEPORT", NodeID: "n1"}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestEventFromPayload_Timestamps(t *testing.T) {
	receivedAt := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	ev, err := EventFromPayload(EventPayload{Type: "METHOD_ENTER", NodeID: "n1"}, receivedAt)
	require.NoError(t, err)
	assert.Equal(t, receivedAt, ev.Timestamp, "zero timestamp takes the receive time")

	at := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	ev, err = EventFromPayload(EventPayload{
		Type: "METHOD_ENTER", NodeID: "n1", Timestamp: at.UnixMilli(),
	}, receivedAt)
	require.NoError(t, err)
	assert.Equal(t, at.UnixMilli(), ev.Timestamp.UnixMilli())
}

func TestEventFromPayload_DurationAttribute(t *testing.T) {
	d := int64(42)
	ev, err := EventFromPayload(EventPayload{
		Type: "METHOD_EXIT", NodeID: "n1", DurationMS: &d,
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(42), ev.Attributes["durationMs"])
}
