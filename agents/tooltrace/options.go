/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tooltrace

import (
	"errors"
	"time"

	"chainguard.dev/catalyst/agents/agenttrace"
	"chainguard.dev/catalyst/agents/metrics"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Option is a functional option for configuring the tracer
type Option func(*Tracer) error

// Instrumentation selects which categories are recorded.
type Instrumentation struct {
	ToolCalls        bool
	NetworkCalls     bool
	UserInteractions bool
}

// WithInstrumentation sets the initial instrumentation flags
func WithInstrumentation(in Instrumentation) Option {
	return func(t *Tracer) error {
		t.tools.Store(in.ToolCalls)
		t.network.Store(in.NetworkCalls)
		t.interactions.Store(in.UserInteractions)
		return nil
	}
}

// WithMemorySampler overrides how resident memory is sampled
func WithMemorySampler(sampler MemorySampler) Option {
	return func(t *Tracer) error {
		if sampler == nil {
			return errors.New("memory sampler cannot be nil")
		}
		t.memory = sampler
		return nil
	}
}

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(t *Tracer) error {
		if now == nil {
			return errors.New("clock cannot be nil")
		}
		t.now = now
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry provider used for tool call spans
func WithTracerProvider(tp oteltrace.TracerProvider) Option {
	return func(t *Tracer) error {
		if tp == nil {
			return errors.New("tracer provider cannot be nil")
		}
		t.otel = tp.Tracer(instrumentationName, oteltrace.WithInstrumentationVersion("1.0.0"))
		return nil
	}
}

// WithMetrics sets the tool call metrics sink
func WithMetrics(m *metrics.ToolCalls) Option {
	return func(t *Tracer) error {
		if m == nil {
			return errors.New("metrics cannot be nil")
		}
		t.metrics = m
		return nil
	}
}

// WithAttributes shares an existing attribute context
func WithAttributes(attrs *agenttrace.Context) Option {
	return func(t *Tracer) error {
		if attrs == nil {
			return errors.New("attributes cannot be nil")
		}
		t.attrs = attrs
		return nil
	}
}
