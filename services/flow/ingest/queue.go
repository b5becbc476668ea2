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

import "time"

// DefaultQueueCapacity bounds the queue when no capacity is configured.
const DefaultQueueCapacity = 10_000

// Queue is the bounded FIFO between ingress handlers and the worker
// pool. A full queue is the backpressure signal: enqueue fails within
// the caller's timeout and the submitter sees QUEUE_FULL.
//
// Thread Safety: safe for concurrent use; it is a buffered channel.
type Queue struct {
	items    chan WorkItem
	capacity int
}

// NewQueue creates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		items:    make(chan WorkItem, capacity),
		capacity: capacity,
	}
}

// Enqueue offers an item, blocking up to timeout when the queue is full.
// A zero timeout never blocks. Returns false when the item was rejected;
// rejected items are never retained.
func (q *Queue) Enqueue(item WorkItem, timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case q.items <- item:
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case q.items <- item:
		return true
	case <-timer.C:
		return false
	}
}

// Dequeue takes the next item, blocking up to timeout when the queue is
// empty. The second return is false when nothing arrived in time.
func (q *Queue) Dequeue(timeout time.Duration) (WorkItem, bool) {
	if timeout <= 0 {
		select {
		case item := <-q.items:
			return item, true
		default:
			return nil, false
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case item := <-q.items:
		return item, true
	case <-timer.C:
		return nil, false
	}
}

// Size returns the number of queued items.
func (q *Queue) Size() int { return len(q.items) }

// Capacity returns the queue bound.
func (q *Queue) Capacity() int { return q.capacity }

// UtilizationPercent returns the fill level as a 0-100 percentage.
func (q *Queue) UtilizationPercent() int {
	return len(q.items) * 100 / q.capacity
}
