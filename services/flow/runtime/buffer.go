// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package runtime

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default retention settings.
const (
	DefaultTTL              = 10 * time.Minute
	DefaultMaxCount         = 100_000
	DefaultEvictionInterval = 60 * time.Second
	DefaultUnmergedBound    = 24 * time.Hour
)

// Options configures the trace buffer.
type Options struct {
	// TTL is how long a merged trace is retained after completion.
	TTL time.Duration

	// MaxCount is the hard cap on buffered traces. When exceeded, the
	// oldest traces by CreatedAt are evicted first.
	MaxCount int

	// UnmergedBound is the hard age bound for traces that never
	// complete or never merge. TTL does not apply to them; this does.
	UnmergedBound time.Duration

	// DedupEnabled is the master switch for event deduplication.
	DedupEnabled bool
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		TTL:           DefaultTTL,
		MaxCount:      DefaultMaxCount,
		UnmergedBound: DefaultUnmergedBound,
		DedupEnabled:  true,
	}
}

// mutableTrace is the buffer-internal accumulating form of a trace. Its
// own mutex serializes appends and state flips per key; the buffer map
// lock is only held to look entries up.
type mutableTrace struct {
	mu sync.Mutex

	traceID string
	graphID string

	events      []Event
	checkpoints []Checkpoint
	errors      []TraceError
	asyncHops   []AsyncHop

	// Produce events awaiting a matching consume, keyed by correlation
	// ID. Earliest unmatched produce wins.
	pendingProduces map[string][]Event

	createdAt   time.Time
	completedAt time.Time
	complete    bool
	merged      bool
}

func (t *mutableTrace) snapshotLocked() Trace {
	snap := Trace{
		TraceID:     t.traceID,
		GraphID:     t.graphID,
		Events:      make([]Event, len(t.events)),
		Checkpoints: make([]Checkpoint, len(t.checkpoints)),
		Errors:      make([]TraceError, len(t.errors)),
		AsyncHops:   make([]AsyncHop, len(t.asyncHops)),
		CreatedAt:   t.createdAt,
		CompletedAt: t.completedAt,
		Complete:    t.complete,
		Merged:      t.merged,
	}
	copy(snap.Events, t.events)
	copy(snap.Checkpoints, t.checkpoints)
	copy(snap.Errors, t.errors)
	copy(snap.AsyncHops, t.asyncHops)
	return snap
}

// Buffer is the keyed, thread-safe trace accumulator with a secondary
// graph-id index.
//
// The buffer exclusively owns each trace until it is marked merged; after
// merging the trace is retained read-only until TTL eviction.
type Buffer struct {
	mu      sync.RWMutex
	traces  map[string]*mutableTrace
	byGraph map[string]map[string]struct{}

	dedup  *Deduplicator
	opts   Options
	now    func() time.Time
	logger *slog.Logger
}

// BufferOption configures a Buffer.
type BufferOption func(*Buffer)

// WithClock overrides the buffer's clock.
func WithClock(now func() time.Time) BufferOption {
	return func(b *Buffer) { b.now = now }
}

// WithLogger sets the buffer's logger.
func WithLogger(logger *slog.Logger) BufferOption {
	return func(b *Buffer) { b.logger = logger }
}

// NewBuffer creates a trace buffer with the given retention options.
func NewBuffer(opts Options, bopts ...BufferOption) *Buffer {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxCount <= 0 {
		opts.MaxCount = DefaultMaxCount
	}
	if opts.UnmergedBound <= 0 {
		opts.UnmergedBound = DefaultUnmergedBound
	}
	b := &Buffer{
		traces:  make(map[string]*mutableTrace),
		byGraph: make(map[string]map[string]struct{}),
		dedup:   NewDeduplicator(opts.DedupEnabled),
		opts:    opts,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range bopts {
		opt(b)
	}
	return b
}

// Append adds events to the trace, creating it if absent. Duplicate
// events (by dedup key) are dropped. Derived projections (checkpoints,
// errors, async hops) are filled as events are appended.
//
// Returns the number of events appended and the number dropped as
// duplicates.
func (b *Buffer) Append(traceID, graphID string, events []Event) (added, deduped int) {
	tr := b.getOrCreate(traceID, graphID)

	tr.mu.Lock()
	for _, ev := range events {
		if b.dedup.Seen(traceID, ev) {
			deduped++
			continue
		}
		tr.events = append(tr.events, ev)
		added++
		b.project(tr, ev)
	}
	tr.mu.Unlock()

	if deduped > 0 {
		b.logger.Debug("dropped duplicate events", "trace_id", traceID, "count", deduped)
	}
	b.enforceMaxCount()
	return added, deduped
}

func (b *Buffer) getOrCreate(traceID, graphID string) *mutableTrace {
	b.mu.RLock()
	tr, ok := b.traces[traceID]
	b.mu.RUnlock()
	if ok {
		return tr
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if tr, ok = b.traces[traceID]; ok {
		return tr
	}
	tr = &mutableTrace{
		traceID:         traceID,
		graphID:         graphID,
		pendingProduces: make(map[string][]Event),
		createdAt:       b.now(),
	}
	b.traces[traceID] = tr
	ids, ok := b.byGraph[graphID]
	if !ok {
		ids = make(map[string]struct{})
		b.byGraph[graphID] = ids
	}
	ids[traceID] = struct{}{}
	return tr
}

// project updates derived projections for a freshly appended event.
// Caller holds tr.mu.
func (b *Buffer) project(tr *mutableTrace, ev Event) {
	switch ev.Type {
	case EventCheckpoint:
		name := "unnamed"
		if v, ok := ev.Attributes["name"].(string); ok && v != "" {
			name = v
		}
		tr.checkpoints = append(tr.checkpoints, Checkpoint{
			ID:        uuid.NewString(),
			Name:      name,
			Timestamp: ev.Timestamp,
			NodeID:    ev.NodeID,
			Data:      ev.Attributes,
		})
	case EventError:
		tr.errors = append(tr.errors, TraceError{
			ID:        uuid.NewString(),
			Type:      ev.ErrorType,
			Message:   ev.ErrorMessage,
			Timestamp: ev.Timestamp,
			NodeID:    ev.NodeID,
			SpanID:    ev.SpanID,
		})
	case EventProduceTopic:
		if corr := ev.correlation(); corr != "" {
			tr.pendingProduces[corr] = append(tr.pendingProduces[corr], ev)
		}
	case EventConsumeTopic:
		corr := ev.correlation()
		if corr == "" {
			return
		}
		pending := tr.pendingProduces[corr]
		if len(pending) == 0 {
			return
		}
		produce := pending[0]
		tr.pendingProduces[corr] = pending[1:]
		tr.asyncHops = append(tr.asyncHops, AsyncHop{
			CorrelationID:  corr,
			ProducerNodeID: produce.NodeID,
			ConsumerNodeID: ev.NodeID,
			ProducedAt:     produce.Timestamp,
			ConsumedAt:     ev.Timestamp,
		})
	}
}

// MarkComplete flags the trace as complete and stamps CompletedAt.
// Idempotent; a second call does not move the completion time.
func (b *Buffer) MarkComplete(traceID string) {
	b.mu.RLock()
	tr, ok := b.traces[traceID]
	b.mu.RUnlock()
	if !ok {
		return
	}
	tr.mu.Lock()
	if !tr.complete {
		tr.complete = true
		tr.completedAt = b.now()
	}
	tr.mu.Unlock()
}

// MarkMerged flags the trace as merged. Idempotent.
func (b *Buffer) MarkMerged(traceID string) {
	b.mu.RLock()
	tr, ok := b.traces[traceID]
	b.mu.RUnlock()
	if !ok {
		return
	}
	tr.mu.Lock()
	tr.merged = true
	tr.mu.Unlock()
}

// Get returns a deep snapshot of the trace.
func (b *Buffer) Get(traceID string) (Trace, bool) {
	b.mu.RLock()
	tr, ok := b.traces[traceID]
	b.mu.RUnlock()
	if !ok {
		return Trace{}, false
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.snapshotLocked(), true
}

// TracesForGraph returns snapshots of every trace associated with the
// graph, ordered by creation time.
func (b *Buffer) TracesForGraph(graphID string) []Trace {
	b.mu.RLock()
	ids := make([]string, 0, len(b.byGraph[graphID]))
	for id := range b.byGraph[graphID] {
		ids = append(ids, id)
	}
	b.mu.RUnlock()

	out := make([]Trace, 0, len(ids))
	for _, id := range ids {
		if snap, ok := b.Get(id); ok {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TraceID < out[j].TraceID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// PendingForGraph returns snapshots of traces that are complete but not
// yet merged, ordered by creation time.
func (b *Buffer) PendingForGraph(graphID string) []Trace {
	all := b.TracesForGraph(graphID)
	out := all[:0]
	for _, t := range all {
		if t.Complete && !t.Merged {
			out = append(out, t)
		}
	}
	return out
}

// Delete removes the trace and its dedup state. Idempotent.
func (b *Buffer) Delete(traceID string) bool {
	b.mu.Lock()
	tr, ok := b.traces[traceID]
	if ok {
		delete(b.traces, traceID)
		if ids, found := b.byGraph[tr.graphID]; found {
			delete(ids, traceID)
			if len(ids) == 0 {
				delete(b.byGraph, tr.graphID)
			}
		}
	}
	b.mu.Unlock()
	if ok {
		b.dedup.ClearTrace(traceID)
	}
	return ok
}

// DeleteForGraph removes every trace associated with the graph. Returns
// the number deleted.
func (b *Buffer) DeleteForGraph(graphID string) int {
	b.mu.RLock()
	ids := make([]string, 0, len(b.byGraph[graphID]))
	for id := range b.byGraph[graphID] {
		ids = append(ids, id)
	}
	b.mu.RUnlock()

	deleted := 0
	for _, id := range ids {
		if b.Delete(id) {
			deleted++
		}
	}
	if deleted > 0 {
		b.logger.Info("deleted traces for graph", "graph_id", graphID, "count", deleted)
	}
	return deleted
}

// Count returns the number of buffered traces.
func (b *Buffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.traces)
}

// EvictExpired removes merged traces whose completion time has aged past
// the TTL, plus unmerged traces older than the hard bound. Traces that
// never complete are not subject to TTL; only the hard bound and the max
// count cap them.
//
// Returns the number of traces evicted.
func (b *Buffer) EvictExpired() int {
	now := b.now()
	ttlCutoff := now.Add(-b.opts.TTL)
	hardCutoff := now.Add(-b.opts.UnmergedBound)

	var expired, forced []string
	b.mu.RLock()
	for id, tr := range b.traces {
		tr.mu.Lock()
		switch {
		case tr.merged && tr.complete && tr.completedAt.Before(ttlCutoff):
			expired = append(expired, id)
		case !tr.merged && tr.createdAt.Before(hardCutoff):
			forced = append(forced, id)
		}
		tr.mu.Unlock()
	}
	b.mu.RUnlock()

	for _, id := range expired {
		b.Delete(id)
	}
	for _, id := range forced {
		b.Delete(id)
		b.logger.Warn("forcibly evicted unmerged trace past hard bound", "trace_id", id)
	}
	if len(expired) > 0 {
		b.logger.Info("evicted expired traces", "count", len(expired))
	}
	return len(expired) + len(forced)
}

// enforceMaxCount evicts the oldest traces by CreatedAt when the buffer
// exceeds its hard cap.
func (b *Buffer) enforceMaxCount() {
	b.mu.RLock()
	over := len(b.traces) - b.opts.MaxCount
	if over <= 0 {
		b.mu.RUnlock()
		return
	}
	type aged struct {
		id string
		at time.Time
	}
	all := make([]aged, 0, len(b.traces))
	for id, tr := range b.traces {
		all = append(all, aged{id: id, at: tr.createdAt})
	}
	b.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })
	for i := 0; i < over && i < len(all); i++ {
		b.Delete(all[i].id)
	}
	b.logger.Warn("trace buffer over capacity, evicted oldest", "evicted", over)
}
