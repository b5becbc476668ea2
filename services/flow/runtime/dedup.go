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

import "sync"

// Deduplicator tracks seen event keys per trace.
//
// The per-trace key set is bounded by the trace's own event count and is
// released when the trace is deleted from the buffer.
//
// Thread Safety: safe for concurrent use.
type Deduplicator struct {
	mu      sync.Mutex
	enabled bool
	seen    map[string]map[string]struct{}
}

// NewDeduplicator creates a deduplicator. When disabled, Seen always
// reports false and records nothing.
func NewDeduplicator(enabled bool) *Deduplicator {
	return &Deduplicator{
		enabled: enabled,
		seen:    make(map[string]map[string]struct{}),
	}
}

// Seen records the event's dedup key for the trace and reports whether
// the key had been seen before.
func (d *Deduplicator) Seen(traceID string, ev Event) bool {
	if !d.enabled {
		return false
	}
	key := ev.DedupKey()

	d.mu.Lock()
	defer d.mu.Unlock()
	keys, ok := d.seen[traceID]
	if !ok {
		keys = make(map[string]struct{})
		d.seen[traceID] = keys
	}
	if _, dup := keys[key]; dup {
		return true
	}
	keys[key] = struct{}{}
	return false
}

// ClearTrace releases the key set of a deleted trace.
func (d *Deduplicator) ClearTrace(traceID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, traceID)
}

// Size returns the total number of tracked keys across all traces.
func (d *Deduplicator) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, keys := range d.seen {
		n += len(keys)
	}
	return n
}
