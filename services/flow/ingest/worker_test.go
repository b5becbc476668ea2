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
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/flow-core/services/flow/runtime"
	"github.com/AleutianAI/flow-core/services/flow/store"
	"github.com/AleutianAI/flow-core/services/flow/telemetry"
)

type fakeMerger struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeMerger) MergeTrace(_ context.Context, traceID, graphID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, traceID+"/"+graphID)
	return nil
}

func (f *fakeMerger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics(t *testing.T) *telemetry.Metrics {
	t.Helper()
	m, err := telemetry.NewMetrics()
	require.NoError(t, err)
	return m
}

func newTestPool(t *testing.T, s *store.Store, b *runtime.Buffer, merger Merger, queue *Queue) *Pool {
	t.Helper()
	logger := testLogger()
	metrics := testMetrics(t)
	static := NewStaticGraphHandler(s, metrics, logger)
	rt := NewRuntimeEventHandler(s, b, merger, metrics, logger)
	return NewPool(queue, static, rt, PoolOptions{
		WorkerCount: 2,
		PollTimeout: 10 * time.Millisecond,
		DrainGrace:  time.Second,
	}, logger)
}

func TestPool_ProcessesStaticGraphWork(t *testing.T) {
	s := store.New()
	b := runtime.NewBuffer(runtime.DefaultOptions())
	queue := NewQueue(16)
	pool := newTestPool(t, s, b, &fakeMerger{}, queue)

	pool.Start(context.Background())
	defer pool.Stop()

	work := StaticGraphWork{
		GraphID: "orders",
		Payload: StaticGraphPayload{
			GraphID: "orders",
			Nodes:   []NodePayload{{ID: "api.orders", Type: "ENDPOINT"}},
		},
		Created: time.Now(),
	}
	require.True(t, queue.Enqueue(work, 0))

	assert.Eventually(t, func() bool {
		return s.Exists("orders")
	}, time.Second, 5*time.Millisecond)
}

func TestPool_ProcessesRuntimeWorkAndSchedulesMerge(t *testing.T) {
	s := store.New()
	b := runtime.NewBuffer(runtime.DefaultOptions())
	merger := &fakeMerger{}
	queue := NewQueue(16)
	pool := newTestPool(t, s, b, merger, queue)

	g, err := BuildGraph(StaticGraphPayload{
		GraphID: "orders",
		Nodes:   []NodePayload{{ID: "api.orders", Type: "ENDPOINT"}},
	})
	require.NoError(t, err)
	s.PutStatic("orders", g)

	pool.Start(context.Background())
	defer pool.Stop()

	work := RuntimeEventWork{
		TraceID: "t1",
		GraphID: "orders",
		Payload: RuntimeEventPayload{
			GraphID: "orders",
			TraceID: "t1",
			Events: []EventPayload{
				{EventID: "e1", Type: "METHOD_ENTER", NodeID: "api.orders", SpanID: "s1"},
			},
			TraceComplete: true,
		},
		TraceComplete: true,
		Created:       time.Now(),
	}
	require.True(t, queue.Enqueue(work, 0))

	assert.Eventually(t, func() bool {
		tr, ok := b.Get("t1")
		return ok && tr.Complete && merger.callCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPool_RuntimeWorkForMissingGraphIsDropped(t *testing.T) {
	s := store.New()
	b := runtime.NewBuffer(runtime.DefaultOptions())
	queue := NewQueue(16)
	pool := newTestPool(t, s, b, &fakeMerger{}, queue)

	pool.Start(context.Background())

	work := RuntimeEventWork{
		TraceID: "t1",
		GraphID: "ghost",
		Payload: RuntimeEventPayload{
			GraphID: "ghost",
			TraceID: "t1",
			Events:  []EventPayload{{EventID: "e1", Type: "METHOD_ENTER", NodeID: "n1"}},
		},
		Created: time.Now(),
	}
	require.True(t, queue.Enqueue(work, 0))

	assert.Eventually(t, func() bool { return queue.Size() == 0 }, time.Second, 5*time.Millisecond)
	pool.Stop()

	_, ok := b.Get("t1")
	assert.False(t, ok, "events for unknown graphs are dropped, not buffered")
}

func TestPool_StopDrainsQueue(t *testing.T) {
	s := store.New()
	b := runtime.NewBuffer(runtime.DefaultOptions())
	queue := NewQueue(64)
	pool := newTestPool(t, s, b, &fakeMerger{}, queue)

	for i := 0; i < 20; i++ {
		work := StaticGraphWork{
			GraphID: "orders",
			Payload: StaticGraphPayload{
				GraphID: "orders",
				Nodes:   []NodePayload{{ID: "api.orders", Type: "ENDPOINT"}},
			},
			Created: time.Now(),
		}
		require.True(t, queue.Enqueue(work, 0))
	}

	pool.Start(context.Background())
	pool.Stop()

	assert.Equal(t, 0, queue.Size(), "stop drains queued work within the grace period")
	assert.Equal(t, 0, pool.ActiveWorkers())
	assert.True(t, s.Exists("orders"))
}
