/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package traceexport

import (
	"context"
	"strings"

	"chainguard.dev/catalyst/agents/agenttrace"
	"chainguard.dev/catalyst/agents/tooltrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// SpanExporter feeds spans of an OpenTelemetry SDK pipeline into an Aggregator,
// for programs instrumented with OpenTelemetry rather than the tool tracer.
type SpanExporter struct {
	agg *Aggregator
}

var _ sdktrace.SpanExporter = (*SpanExporter)(nil)

// NewSpanExporter creates an exporter adding to agg.
func NewSpanExporter(agg *Aggregator) *SpanExporter {
	return &SpanExporter{agg: agg}
}

// ExportSpans implements sdktrace.SpanExporter. Traces are finalized as their
// root spans arrive, so this never reports failure.
func (e *SpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		e.agg.Add(ctx, FragmentFromSpan(s))
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter by finalizing every buffered trace.
func (e *SpanExporter) Shutdown(ctx context.Context) error {
	return e.agg.Shutdown(ctx)
}

// FragmentFromSpan converts a finished span. Attribute values are sanitized,
// so NaN or infinite floats are kept as strings.
func FragmentFromSpan(s sdktrace.ReadOnlySpan) agenttrace.Fragment {
	sc := s.SpanContext()
	f := agenttrace.Fragment{
		TraceID:   sc.TraceID().String(),
		SpanID:    sc.SpanID().String(),
		Name:      s.Name(),
		Status:    strings.ToLower(s.Status().Code.String()),
		StartTime: s.StartTime(),
		EndTime:   s.EndTime(),
	}
	if p := s.Parent(); p.IsValid() {
		f.ParentID = p.SpanID().String()
	}
	if attrs := s.Attributes(); len(attrs) > 0 {
		f.Attributes = make(map[string]any, len(attrs))
		for _, kv := range attrs {
			f.Attributes[string(kv.Key)] = tooltrace.Sanitize(kv.Value.AsInterface())
		}
	}
	return f
}
