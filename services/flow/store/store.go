// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store holds the current graph snapshot for every graph ID.
//
// The store exclusively owns the published Graph value for each key.
// Readers receive snapshots that must not be mutated; writers replace the
// whole entry (atomic swap), never mutate in place. Every entry carries a
// sequence number so the merge engine can commit optimistically: a merge
// computed from sequence N only lands if the entry is still at N.
//
// Thread Safety:
//
//	Safe for concurrent use. A single RWMutex guards the key map;
//	readers never block each other, and a reader holding a snapshot past
//	a subsequent writer's swap simply keeps the older graph.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/flow-core/services/flow/graph"
)

// Sentinel errors for store commits.
var (
	// ErrNotFound indicates the graph ID has no entry.
	ErrNotFound = errors.New("graph not found in store")

	// ErrConflict indicates the entry moved past the sequence a merge
	// was computed from.
	ErrConflict = errors.New("graph changed since merge snapshot")
)

// Metadata describes a stored graph. It is updated atomically with the
// graph itself and reflects the same snapshot a concurrent Get would see.
type Metadata struct {
	GraphID        string    `json:"graphId"`
	Version        string    `json:"version"`
	NodeCount      int       `json:"nodeCount"`
	EdgeCount      int       `json:"edgeCount"`
	CreatedAt      time.Time `json:"createdAt"`
	LastUpdatedAt  time.Time `json:"lastUpdatedAt"`
	HasRuntimeData bool      `json:"hasRuntimeData"`
	TraceCount     int64     `json:"traceCount"`
}

type entry struct {
	graph      *graph.Graph
	meta       Metadata
	seq        uint64
	traceCount int64
}

// Store is the keyed graph registry.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	// now is the clock capability; injectable for deterministic tests.
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the store's clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PutStatic publishes a static graph, replacing any prior value for the
// same ID. CreatedAt is preserved across a replace; LastUpdatedAt is set
// to now. A replace resets HasRuntimeData: the new static graph has not
// been enriched yet.
func (s *Store) PutStatic(graphID string, g *graph.Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	createdAt := now
	var seq uint64
	var traceCount int64
	if prev, ok := s.entries[graphID]; ok {
		createdAt = prev.meta.CreatedAt
		seq = prev.seq + 1
		traceCount = prev.traceCount
	}
	s.entries[graphID] = &entry{
		graph: g,
		meta: Metadata{
			GraphID:       graphID,
			Version:       g.Version(),
			NodeCount:     g.NodeCount(),
			EdgeCount:     g.EdgeCount(),
			CreatedAt:     createdAt,
			LastUpdatedAt: now,
			TraceCount:    traceCount,
		},
		seq:        seq,
		traceCount: traceCount,
	}
}

// Get returns the current graph snapshot for the ID.
func (s *Store) Get(graphID string) (*graph.Graph, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[graphID]
	if !ok {
		return nil, false
	}
	return e.graph, true
}

// GetForMerge returns the current snapshot together with its sequence
// number, for a later optimistic UpdateMerged.
func (s *Store) GetForMerge(graphID string) (*graph.Graph, uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[graphID]
	if !ok {
		return nil, 0, false
	}
	return e.graph, e.seq, true
}

// GetWithMetadata returns the graph snapshot and its metadata under one
// lock, so the pair always describes the same entry. Callers that need
// both must use this instead of separate Get and Metadata calls, which
// can straddle a concurrent delete.
func (s *Store) GetWithMetadata(graphID string) (*graph.Graph, Metadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[graphID]
	if !ok {
		return nil, Metadata{}, false
	}
	return e.graph, e.meta, true
}

// Exists reports whether the graph ID has an entry.
func (s *Store) Exists(graphID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[graphID]
	return ok
}

// UpdateMerged swaps in a merge-enriched graph.
//
// The swap only lands if the entry still exists and is at baseSeq, the
// sequence the merge snapshot was taken at. On success the entry gains
// HasRuntimeData and an incremented trace counter. Returns ErrNotFound if
// the graph was deleted meanwhile (a no-op by contract) and ErrConflict
// if another writer got there first.
func (s *Store) UpdateMerged(graphID string, baseSeq uint64, merged *graph.Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[graphID]
	if !ok {
		return ErrNotFound
	}
	if e.seq != baseSeq {
		return ErrConflict
	}
	now := s.now()
	s.entries[graphID] = &entry{
		graph: merged,
		meta: Metadata{
			GraphID:        graphID,
			Version:        e.meta.Version,
			NodeCount:      merged.NodeCount(),
			EdgeCount:      merged.EdgeCount(),
			CreatedAt:      e.meta.CreatedAt,
			LastUpdatedAt:  now,
			HasRuntimeData: true,
			TraceCount:     e.traceCount + 1,
		},
		seq:        e.seq + 1,
		traceCount: e.traceCount + 1,
	}
	return nil
}

// Delete removes the graph. Idempotent; reports whether an entry was
// present. Associated traces are the trace buffer's concern; the service
// facade deletes them in the same step.
func (s *Store) Delete(graphID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[graphID]
	delete(s.entries, graphID)
	return ok
}

// Metadata returns the metadata record for the ID.
func (s *Store) Metadata(graphID string) (Metadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[graphID]
	if !ok {
		return Metadata{}, false
	}
	return e.meta, true
}

// List returns a snapshot of all metadata records, sorted by graph ID for
// stable output. The list may lag concurrent writes by a moment but never
// contains a deleted entry.
func (s *Store) List() []Metadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Metadata, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GraphID < out[j].GraphID })
	return out
}

// Count returns the number of stored graphs.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
