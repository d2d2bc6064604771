/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package traceexport

import (
	"context"
	"errors"
	"slices"
	"sync"

	"chainguard.dev/catalyst/agents/agenttrace"
	"chainguard.dev/catalyst/agents/upload"
	"github.com/chainguard-dev/clog"
	"github.com/golang/groupcache/lru"
	"golang.org/x/sync/errgroup"
)

// DefaultTombstones is how many finalized trace ids are remembered to
// recognize late fragments.
const DefaultTombstones = 4096

// TraceHandler turns the fragments of a complete trace into an upload.
type TraceHandler interface {
	Finalize(ctx context.Context, traceID string, fragments []agenttrace.Fragment) (*upload.Request, error)
}

// HandlerFunc adapts a function to TraceHandler.
type HandlerFunc func(ctx context.Context, traceID string, fragments []agenttrace.Fragment) (*upload.Request, error)

// Finalize implements TraceHandler.
func (f HandlerFunc) Finalize(ctx context.Context, traceID string, fragments []agenttrace.Fragment) (*upload.Request, error) {
	return f(ctx, traceID, fragments)
}

type buffer struct {
	mu        sync.Mutex
	fragments []agenttrace.Fragment
	done      bool
}

// Aggregator buffers fragments per trace id and finalizes a trace when its
// root fragment arrives. The global lock only guards the trace table; each
// trace is appended to and finalized under its own lock, so traces never wait
// on each other.
type Aggregator struct {
	handler TraceHandler

	mu        sync.Mutex
	traces    map[string]*buffer
	finalized *lru.Cache
	closed    bool
}

var _ agenttrace.Emitter = (*Aggregator)(nil)

// NewAggregator creates an aggregator finalizing traces with handler.
// tombstones bounds the memory of finalized ids; 0 uses DefaultTombstones.
func NewAggregator(handler TraceHandler, tombstones int) (*Aggregator, error) {
	if handler == nil {
		return nil, errors.New("handler cannot be nil")
	}
	if tombstones < 0 {
		return nil, errors.New("tombstones cannot be negative")
	}
	if tombstones == 0 {
		tombstones = DefaultTombstones
	}
	return &Aggregator{
		handler:   handler,
		traces:    make(map[string]*buffer),
		finalized: lru.New(tombstones),
	}, nil
}

// Add buffers f. When f is the root of its trace, the trace is finalized
// before Add returns. Fragments of a trace that was already finalized are
// dropped.
func (a *Aggregator) Add(ctx context.Context, f agenttrace.Fragment) {
	fragmentsReceived.Inc()
	log := clog.FromContext(ctx).With("trace_id", f.TraceID, "span_id", f.SpanID)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		stragglers.Inc()
		log.Warn("Dropping fragment received after shutdown")
		return
	}
	if _, ok := a.finalized.Get(f.TraceID); ok {
		a.mu.Unlock()
		stragglers.Inc()
		log.Warn("Dropping fragment of finalized trace")
		return
	}
	b, ok := a.traces[f.TraceID]
	if !ok {
		b = &buffer{}
		a.traces[f.TraceID] = b
		tracesBuffering.Inc()
	}
	root := f.IsRoot()
	if root {
		delete(a.traces, f.TraceID)
		a.finalized.Add(f.TraceID, struct{}{})
		tracesBuffering.Dec()
	}
	a.mu.Unlock()

	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		stragglers.Inc()
		log.Warn("Dropping fragment of finalized trace")
		return
	}
	b.fragments = append(b.fragments, f)
	if !root {
		b.mu.Unlock()
		return
	}
	b.done = true
	fragments := slices.Clone(b.fragments)
	b.fragments = nil
	b.mu.Unlock()

	a.finalize(ctx, f.TraceID, fragments, "root")
}

// Pending returns the number of traces still waiting for their root.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.traces)
}

// Shutdown finalizes every buffered trace, complete or not, and stops
// accepting fragments. Traces are finalized in parallel.
func (a *Aggregator) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	pending := a.traces
	a.traces = make(map[string]*buffer)
	for id := range pending {
		a.finalized.Add(id, struct{}{})
	}
	tracesBuffering.Sub(float64(len(pending)))
	a.mu.Unlock()

	clog.FromContext(ctx).Info("Finalizing buffered traces", "count", len(pending))

	g, gctx := errgroup.WithContext(ctx)
	for id, b := range pending {
		g.Go(func() error {
			b.mu.Lock()
			if b.done {
				b.mu.Unlock()
				return nil
			}
			b.done = true
			fragments := slices.Clone(b.fragments)
			b.fragments = nil
			b.mu.Unlock()

			a.finalize(gctx, id, fragments, "shutdown")
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

func (a *Aggregator) finalize(ctx context.Context, traceID string, fragments []agenttrace.Fragment, reason string) {
	log := clog.FromContext(ctx).With("trace_id", traceID, "fragments", len(fragments), "reason", reason)
	defer func() {
		if r := recover(); r != nil {
			finalizationFailures.Inc()
			log.Error("Failed to finalize trace", "panic", r)
		}
	}()

	req, err := a.handler.Finalize(ctx, traceID, fragments)
	if err != nil {
		finalizationFailures.Inc()
		log.Error("Failed to finalize trace", "error", err)
		return
	}
	tracesFinalized.WithLabelValues(reason).Inc()
	if req != nil {
		log = log.With("trace_file", req.TraceFilePath)
	}
	log.Info("Trace finalized")
}
