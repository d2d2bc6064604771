/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// AttributeEnricher adds deployment labels, such as project and dataset, to the
// base attributes (tool, tool_type) of every recorded call.
type AttributeEnricher func(ctx context.Context, baseAttrs []attribute.KeyValue) []attribute.KeyValue

// ToolCalls provides OpenTelemetry metrics for traced tool invocations.
// It includes counters for calls and failures and histograms for latency and
// memory, with support for graceful degradation if metric creation fails.
type ToolCalls struct {
	calls        metric.Int64Counter
	failures     metric.Int64Counter
	duration     metric.Float64Histogram
	memory       metric.Int64Histogram
	attrEnricher AttributeEnricher
}

// NewToolCalls creates tool call metrics on the global meter provider.
func NewToolCalls(meterName string) *ToolCalls {
	return NewToolCallsWithProvider(otel.GetMeterProvider(), meterName)
}

// NewToolCallsWithProvider creates tool call metrics with the given meter provider.
// Uses graceful degradation: if any instrument fails to initialize, logs a warning
// and uses a no-op instrument instead of failing entirely.
func NewToolCallsWithProvider(mp metric.MeterProvider, meterName string) *ToolCalls {
	meter := mp.Meter(meterName, metric.WithInstrumentationVersion("1.0.0"))

	calls, err := meter.Int64Counter("agent.tool.calls",
		metric.WithDescription("The number of traced tool invocations"),
		metric.WithUnit("{calls}"))
	if err != nil {
		slog.Warn("Failed to create tool call counter, metrics will be disabled", "error", err, "meter", meterName)
		calls = noop.Int64Counter{}
	}

	failures, err := meter.Int64Counter("agent.tool.failures",
		metric.WithDescription("The number of traced tool invocations that returned an error"),
		metric.WithUnit("{calls}"))
	if err != nil {
		slog.Warn("Failed to create tool failure counter, metrics will be disabled", "error", err, "meter", meterName)
		failures = noop.Int64Counter{}
	}

	duration, err := meter.Float64Histogram("agent.tool.duration",
		metric.WithDescription("Wall-clock duration of traced tool invocations"),
		metric.WithUnit("s"))
	if err != nil {
		slog.Warn("Failed to create tool duration histogram, metrics will be disabled", "error", err, "meter", meterName)
		duration = noop.Float64Histogram{}
	}

	memory, err := meter.Int64Histogram("agent.tool.memory",
		metric.WithDescription("Resident memory growth observed across traced tool invocations"),
		metric.WithUnit("By"))
	if err != nil {
		slog.Warn("Failed to create tool memory histogram, metrics will be disabled", "error", err, "meter", meterName)
		memory = noop.Int64Histogram{}
	}

	return &ToolCalls{
		calls:    calls,
		failures: failures,
		duration: duration,
		memory:   memory,
	}
}

// SetAttributeEnricher sets the attribute enricher for this metrics instance.
func (m *ToolCalls) SetAttributeEnricher(enricher AttributeEnricher) {
	m.attrEnricher = enricher
}

// Record records one finished invocation.
func (m *ToolCalls) Record(ctx context.Context, tool, toolType string, d time.Duration, memoryUsed uint64, failed bool, attrs ...attribute.KeyValue) {
	baseAttrs := []attribute.KeyValue{
		attribute.String("tool", tool),
		attribute.String("tool_type", toolType),
	}

	if m.attrEnricher != nil {
		baseAttrs = m.attrEnricher(ctx, baseAttrs)
	}
	baseAttrs = append(baseAttrs, attrs...)
	opt := metric.WithAttributes(baseAttrs...)

	m.calls.Add(ctx, 1, opt)
	if failed {
		m.failures.Add(ctx, 1, opt)
	}
	m.duration.Record(ctx, d.Seconds(), opt)
	m.memory.Record(ctx, int64(memoryUsed), opt) //nolint:gosec // RSS deltas fit in int64
}
