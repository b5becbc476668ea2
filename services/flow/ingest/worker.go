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
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Pool defaults.
const (
	DefaultWorkerCount = 2
	DefaultPollTimeout = 100 * time.Millisecond
	DefaultDrainGrace  = 5 * time.Second
)

// PoolOptions configures the worker pool.
type PoolOptions struct {
	// WorkerCount is the number of consumer goroutines.
	WorkerCount int

	// PollTimeout bounds each dequeue wait, so workers notice the stop
	// flag promptly.
	PollTimeout time.Duration

	// DrainGrace bounds how long stopping workers keep draining the
	// queue before exiting.
	DrainGrace time.Duration
}

// DefaultPoolOptions returns the production defaults.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		WorkerCount: DefaultWorkerCount,
		PollTimeout: DefaultPollTimeout,
		DrainGrace:  DefaultDrainGrace,
	}
}

// Pool runs N independent consumers over the ingestion queue,
// dispatching each work item to its handler by tag.
//
// Failed items are logged and dropped, never re-queued; retry policy
// belongs to the submitter.
type Pool struct {
	queue   *Queue
	static  *StaticGraphHandler
	runtime *RuntimeEventHandler
	opts    PoolOptions
	logger  *slog.Logger

	stopped   atomic.Bool
	drainedBy atomic.Int64 // unix nanos deadline for post-stop draining
	active    atomic.Int32
	wg        sync.WaitGroup
}

// NewPool creates a worker pool over the queue.
func NewPool(queue *Queue, static *StaticGraphHandler, runtime *RuntimeEventHandler, opts PoolOptions, logger *slog.Logger) *Pool {
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = DefaultWorkerCount
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.DrainGrace <= 0 {
		opts.DrainGrace = DefaultDrainGrace
	}
	return &Pool{
		queue:   queue,
		static:  static,
		runtime: runtime,
		opts:    opts,
		logger:  logger,
	}
}

// Start launches the workers.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.opts.WorkerCount; i++ {
		p.wg.Add(1)
		go p.loop(ctx, i)
	}
	p.logger.Info("ingestion workers started", "count", p.opts.WorkerCount)
}

// Stop signals the workers to finish. Workers drain the queue up to the
// drain grace period, then exit; Stop returns once all have.
func (p *Pool) Stop() {
	p.drainedBy.Store(time.Now().Add(p.opts.DrainGrace).UnixNano())
	p.stopped.Store(true)
	p.wg.Wait()
	p.logger.Info("ingestion workers stopped")
}

// ActiveWorkers returns the number of workers currently in their loop.
func (p *Pool) ActiveWorkers() int {
	return int(p.active.Load())
}

func (p *Pool) loop(ctx context.Context, id int) {
	defer p.wg.Done()
	p.active.Add(1)
	defer p.active.Add(-1)

	logger := p.logger.With("worker", id)
	for {
		if p.stopped.Load() {
			p.drain(ctx, logger)
			return
		}
		item, ok := p.queue.Dequeue(p.opts.PollTimeout)
		if !ok {
			continue
		}
		p.dispatch(ctx, item, logger)
	}
}

// drain empties the queue after stop, bounded by the grace deadline.
func (p *Pool) drain(ctx context.Context, logger *slog.Logger) {
	deadline := time.Unix(0, p.drainedBy.Load())
	for time.Now().Before(deadline) {
		item, ok := p.queue.Dequeue(0)
		if !ok {
			return
		}
		p.dispatch(ctx, item, logger)
	}
}

func (p *Pool) dispatch(ctx context.Context, item WorkItem, logger *slog.Logger) {
	var err error
	switch work := item.(type) {
	case StaticGraphWork:
		err = p.static.Handle(ctx, work)
	case RuntimeEventWork:
		err = p.runtime.Handle(ctx, work)
	default:
		logger.Error("unknown work item type", "entity_id", item.EntityID())
		return
	}
	if err != nil {
		logger.Error("ingestion failed", "entity_id", item.EntityID(), "error", err)
	}
}
