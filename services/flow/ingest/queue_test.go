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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticWork(id string) StaticGraphWork {
	return StaticGraphWork{GraphID: id, Created: time.Now()}
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue(4)
	for i := 0; i < 3; i++ {
		require.True(t, q.Enqueue(staticWork(fmt.Sprintf("g%d", i)), 0))
	}

	for i := 0; i < 3; i++ {
		item, ok := q.Dequeue(0)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("g%d", i), item.EntityID())
	}

	_, ok := q.Dequeue(0)
	assert.False(t, ok, "empty queue with zero timeout returns immediately")
}

func TestQueue_FullRejectsWithZeroTimeout(t *testing.T) {
	q := NewQueue(2)
	require.True(t, q.Enqueue(staticWork("g0"), 0))
	require.True(t, q.Enqueue(staticWork("g1"), 0))

	assert.False(t, q.Enqueue(staticWork("g2"), 0))
	assert.Equal(t, 2, q.Size())
}

func TestQueue_EnqueueWaitsForSpace(t *testing.T) {
	q := NewQueue(1)
	require.True(t, q.Enqueue(staticWork("g0"), 0))

	done := make(chan bool, 1)
	go func() {
		done <- q.Enqueue(staticWork("g1"), time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	_, ok := q.Dequeue(0)
	require.True(t, ok)

	select {
	case accepted := <-done:
		assert.True(t, accepted, "enqueue succeeds once space frees up")
	case <-time.After(time.Second):
		t.Fatal("enqueue did not complete after space freed")
	}
}

func TestQueue_DequeueTimesOut(t *testing.T) {
	q := NewQueue(1)
	start := time.Now()
	_, ok := q.Dequeue(30 * time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestQueue_UtilizationPercent(t *testing.T) {
	q := NewQueue(4)
	assert.Equal(t, 0, q.UtilizationPercent())

	require.True(t, q.Enqueue(staticWork("g0"), 0))
	assert.Equal(t, 25, q.UtilizationPercent())

	require.True(t, q.Enqueue(staticWork("g1"), 0))
	require.True(t, q.Enqueue(staticWork("g2"), 0))
	require.True(t, q.Enqueue(staticWork("g3"), 0))
	assert.Equal(t, 100, q.UtilizationPercent())
	assert.Equal(t, 4, q.Capacity())
}
