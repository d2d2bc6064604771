/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tooltrace

import (
	"context"
	"strings"
	"time"

	"chainguard.dev/catalyst/agents/agenttrace"
	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// invocation is the bookkeeping of one traced call.
type invocation struct {
	t  *Tracer
	id identity

	// parent is the caller's context; ctx is handed to the wrapped function.
	parent context.Context
	ctx    context.Context
	span   oteltrace.Span

	traceID     string
	componentID string
	start       time.Time
	startMem    uint64
	memOK       bool
	args        []any
	groundTruth any
}

// begin prepares an invocation. It returns nil if the bookkeeping itself
// fails, in which case the caller runs the function untraced.
func (t *Tracer) begin(ctx context.Context, id identity, in any) (inv *invocation) {
	defer func() {
		if r := recover(); r != nil {
			clog.FromContext(ctx).With("tool", id.name).Error("Failed to start tool trace", "panic", r)
			inv = nil
		}
	}()

	start := t.now()
	startMem, err := t.memory(ctx)
	if err != nil {
		clog.FromContext(ctx).With("tool", id.name).Debug("Memory sampling unavailable", "error", err)
	}

	componentID := uuid.NewString()
	spanCtx, span := t.otel.Start(ctx, "agent.tool_call", oteltrace.WithAttributes(
		attribute.String("tool.name", id.name),
		attribute.String("tool.id", componentID),
		attribute.String("tool.type", id.toolType),
	))

	frame := agenttrace.Frame{
		TraceID:     traceIDFor(ctx, span),
		ComponentID: componentID,
		ParentID:    agenttrace.CurrentParent(ctx),
		Name:        id.name,
	}
	calls := t.startComponent(componentID)

	var gt any
	if g, ok := in.(GroundTruther); ok {
		gt = g.GroundTruth()
	}

	return &invocation{
		t:           t,
		id:          id,
		parent:      ctx,
		ctx:         agenttrace.WithFrame(spanCtx, frame, calls),
		span:        span,
		traceID:     frame.TraceID,
		componentID: componentID,
		start:       start,
		startMem:    startMem,
		memOK:       err == nil,
		args:        []any{in},
		groundTruth: gt,
	}
}

// traceIDFor keeps nested invocations on their enclosing trace and otherwise
// prefers the OpenTelemetry trace id so components line up with exported spans.
func traceIDFor(ctx context.Context, span oteltrace.Span) string {
	if f, ok := agenttrace.FrameFromContext(ctx); ok && f.TraceID != "" {
		return f.TraceID
	}
	if sc := span.SpanContext(); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// succeed records a call that returned. err may be non-nil.
func (inv *invocation) succeed(out any, err error) {
	inv.finish(inv.t.now(), out, func() *agenttrace.ErrorInfo { return NewErrorInfo(err) })
}

// panicked records a call that panicked with v.
func (inv *invocation) panicked(v any) {
	inv.finish(inv.t.now(), nil, func() *agenttrace.ErrorInfo { return panicInfo(v) })
}

// exited records a call whose goroutine was ended by runtime.Goexit.
func (inv *invocation) exited() {
	inv.panicked("goroutine exited")
}

// finish records the outcome. describe builds the error payload and runs under
// the recover guard, as it may call methods of the wrapped call's error.
func (inv *invocation) finish(end time.Time, out any, describe func() *agenttrace.ErrorInfo) {
	defer func() {
		if r := recover(); r != nil {
			clog.FromContext(inv.parent).With("tool", inv.id.name, "component_id", inv.componentID).
				Error("Failed to record tool trace", "panic", r)
		}
	}()

	errInfo := describe()

	var memUsed uint64
	if errInfo == nil && inv.memOK {
		if endMem, merr := inv.t.memory(inv.parent); merr == nil && endMem > inv.startMem {
			memUsed = endMem - inv.startMem
		}
	}

	c := inv.t.Build(inv.parent, BuildParams{
		ComponentID: inv.componentID,
		HashID:      inv.id.hashID,
		Name:        inv.id.name,
		ToolType:    inv.id.toolType,
		Version:     inv.id.version,
		MemoryUsed:  memUsed,
		StartTime:   inv.start,
		EndTime:     end,
		Args:        inv.args,
		Output:      out,
		Error:       errInfo,
		GroundTruth: inv.groundTruth,
	})

	if errInfo != nil {
		inv.span.AddEvent("exception", oteltrace.WithAttributes(
			attribute.String("exception.type", errInfo.Type),
			attribute.String("exception.message", errInfo.Message),
		))
		inv.span.SetStatus(codes.Error, errInfo.Message)
	} else {
		inv.span.SetStatus(codes.Ok, "")
	}
	inv.span.SetAttributes(attribute.Int64("tool.memory_used", int64(memUsed))) //nolint:gosec // RSS deltas fit in int64
	inv.span.End(oteltrace.WithTimestamp(end))

	inv.t.metrics.Record(inv.parent, inv.id.name, inv.id.toolType, end.Sub(inv.start), memUsed, errInfo != nil)
	inv.t.emit(inv.parent, inv.traceID, c)
}
