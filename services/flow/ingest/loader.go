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
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/flow-core/services/flow/graph"
	"github.com/AleutianAI/flow-core/services/flow/runtime"
)

// defaultSchemaVersion is assumed when the submitter omits the version.
const defaultSchemaVersion = "1"

// BuildGraph transforms a submitted payload into a Graph.
//
// Decoding is explicit and field-by-field: unknown enumeration values
// fail with ErrInvalidPayload instead of silently defaulting. Missing
// data fields take their documented defaults: visibility PUBLIC, and a
// service ID derived from the node ID prefix. Zoom levels are left unset
// here; the merge engine's zoom policy assigns them.
//
// BuildGraph runs on the worker, not on the ingress thread.
func BuildGraph(p StaticGraphPayload) (*graph.Graph, error) {
	version := p.Version
	if version == "" {
		version = defaultSchemaVersion
	}
	g := graph.New(version)

	for _, np := range p.Nodes {
		node, err := buildNode(np)
		if err != nil {
			return nil, err
		}
		if err := g.AddNode(node); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
	}

	for _, ep := range p.Edges {
		edgeType, err := graph.ParseEdgeType(ep.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: edge %q: %w", ErrInvalidPayload, ep.ID, err)
		}
		edge := &graph.Edge{
			ID:       ep.ID,
			SourceID: ep.From,
			TargetID: ep.To,
			Type:     edgeType,
		}
		if err := g.AddEdge(edge); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
	}

	return g, nil
}

func buildNode(np NodePayload) (*graph.Node, error) {
	nodeType, err := graph.ParseNodeType(np.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: node %q: %w", ErrInvalidPayload, np.ID, err)
	}

	name := np.Name
	if name == "" {
		name = np.ID
	}

	visibility := graph.VisibilityPublic
	serviceID := deriveServiceID(np.ID)
	metadata := make(map[string]any)
	for k, v := range np.Data {
		switch k {
		case "visibility":
			s, _ := v.(string)
			visibility, err = graph.ParseVisibility(s)
			if err != nil {
				return nil, fmt.Errorf("%w: node %q: %w", ErrInvalidPayload, np.ID, err)
			}
		case "serviceId":
			if s, ok := v.(string); ok && s != "" {
				serviceID = s
			}
		default:
			metadata[k] = v
		}
	}
	if len(metadata) == 0 {
		metadata = nil
	}

	return &graph.Node{
		ID:         np.ID,
		Name:       name,
		Type:       nodeType,
		ServiceID:  serviceID,
		Visibility: visibility,
		Metadata:   metadata,
	}, nil
}

// deriveServiceID falls back to the node ID prefix when the submitter
// did not name a service: the segment before the first dot, matching the
// adapter's "<service>.<class>.<member>" ID convention.
func deriveServiceID(nodeID string) string {
	if i := strings.IndexByte(nodeID, '.'); i > 0 {
		return nodeID[:i]
	}
	return nodeID
}

// EventFromPayload decodes one submitted event.
//
// A zero timestamp takes the receive time. The submitted duration, when
// present, is kept as an attribute; authoritative durations come from
// enter/exit timestamp pairs during merge.
func EventFromPayload(p EventPayload, receivedAt time.Time) (runtime.Event, error) {
	eventType, err := runtime.ParseEventType(p.Type)
	if err != nil {
		return runtime.Event{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	ts := receivedAt
	if p.Timestamp > 0 {
		ts = time.UnixMilli(p.Timestamp)
	}

	attrs := p.Attributes
	if p.DurationMS != nil {
		if attrs == nil {
			attrs = make(map[string]any, 1)
		}
		attrs["durationMs"] = *p.DurationMS
	}

	return runtime.Event{
		EventID:       p.EventID,
		Type:          eventType,
		Timestamp:     ts,
		NodeID:        p.NodeID,
		SpanID:        p.SpanID,
		ParentSpanID:  p.ParentSpanID,
		CorrelationID: p.CorrelationID,
		ErrorMessage:  p.ErrorMessage,
		ErrorType:     p.ErrorType,
		Attributes:    attrs,
	}, nil
}
