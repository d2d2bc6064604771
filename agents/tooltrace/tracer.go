/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tooltrace

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"chainguard.dev/catalyst/agents/agenttrace"
	"chainguard.dev/catalyst/agents/metrics"
	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/process"
	"go.opentelemetry.io/otel"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const instrumentationName = "chainguard.ai.agents.tooltrace"

// MemorySampler samples the resident memory of the process in bytes.
type MemorySampler func(ctx context.Context) (uint64, error)

// ProcessRSS returns a sampler reading the resident set size of this process.
func ProcessRSS() MemorySampler {
	var (
		once sync.Once
		proc *process.Process
		perr error
	)
	return func(ctx context.Context) (uint64, error) {
		once.Do(func() {
			proc, perr = process.NewProcessWithContext(ctx, int32(os.Getpid())) //nolint:gosec // pids fit in int32
		})
		if perr != nil {
			return 0, fmt.Errorf("opening process: %w", perr)
		}
		info, err := proc.MemoryInfoWithContext(ctx)
		if err != nil {
			return 0, fmt.Errorf("reading memory info: %w", err)
		}
		return info.RSS, nil
	}
}

// Tracer records wrapped tool invocations as components and hands them to an Emitter.
type Tracer struct {
	active       atomic.Bool
	tools        atomic.Bool
	network      atomic.Bool
	interactions atomic.Bool

	attrs   *agenttrace.Context
	emitter agenttrace.Emitter
	memory  MemorySampler
	metrics *metrics.ToolCalls
	otel    oteltrace.Tracer
	now     func() time.Time

	// component id -> *agenttrace.Calls for invocations in flight
	buckets sync.Map
}

// New creates an inactive tracer that emits components to emitter.
// A nil emitter logs components with clog.
func New(emitter agenttrace.Emitter, opts ...Option) (*Tracer, error) {
	if emitter == nil {
		emitter = agenttrace.NewDefaultEmitter()
	}
	t := &Tracer{
		attrs:   agenttrace.NewContext(),
		emitter: emitter,
		memory:  ProcessRSS(),
		otel: otel.GetTracerProvider().Tracer(instrumentationName,
			oteltrace.WithInstrumentationVersion("1.0.0")),
		now: time.Now,
	}
	t.tools.Store(true)

	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	if t.metrics == nil {
		t.metrics = metrics.NewToolCalls("chainguard.ai.agents")
	}
	return t, nil
}

// Start activates tracing.
func (t *Tracer) Start() {
	t.active.Store(true)
}

// Stop deactivates tracing. Wrapped functions keep working untraced.
func (t *Tracer) Stop() {
	t.active.Store(false)
}

// Active reports whether tracing is on.
func (t *Tracer) Active() bool {
	return t.active.Load()
}

// InstrumentToolCalls toggles recording of tool invocations.
func (t *Tracer) InstrumentToolCalls(enabled bool) {
	t.tools.Store(enabled)
}

// InstrumentNetworkCalls toggles attaching network calls to components.
func (t *Tracer) InstrumentNetworkCalls(enabled bool) {
	t.network.Store(enabled)
}

// InstrumentUserInteractions toggles attaching interactions to components.
func (t *Tracer) InstrumentUserInteractions(enabled bool) {
	t.interactions.Store(enabled)
}

// Attributes returns the shared attribute context. Tags, metadata, metrics and
// feedback registered under a span name apply to its next invocation.
func (t *Tracer) Attributes() *agenttrace.Context {
	return t.attrs
}

// RecordInteraction attaches a user interaction to the component running on ctx.
func (t *Tracer) RecordInteraction(ctx context.Context, kind, content string) bool {
	return agenttrace.RecordInteraction(ctx, agenttrace.Interaction{
		ID:        uuid.NewString(),
		Type:      kind,
		Content:   content,
		Timestamp: t.now(),
	})
}

// Shutdown deactivates the tracer, clears its shared state and shuts down the
// emitter when it supports it.
func (t *Tracer) Shutdown(ctx context.Context) error {
	t.Stop()
	t.attrs.Reset()
	t.buckets.Clear()

	if s, ok := t.emitter.(interface{ Shutdown(context.Context) error }); ok {
		if err := s.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutting down emitter: %w", err)
		}
	}
	clog.FromContext(ctx).Debug("Tool tracer shut down")
	return nil
}

func (t *Tracer) enabled() bool {
	return t.active.Load() && t.tools.Load()
}

func (t *Tracer) startComponent(id string) *agenttrace.Calls {
	calls := agenttrace.NewCalls()
	t.buckets.Store(id, calls)
	return calls
}

func (t *Tracer) endComponent(id string) ([]agenttrace.NetworkCall, []agenttrace.Interaction) {
	v, ok := t.buckets.LoadAndDelete(id)
	if !ok {
		return []agenttrace.NetworkCall{}, []agenttrace.Interaction{}
	}
	return v.(*agenttrace.Calls).Snapshot()
}

func (t *Tracer) emit(ctx context.Context, traceID string, c *agenttrace.Component) {
	t.emitter.Add(ctx, agenttrace.FragmentFor(traceID, c))
}
