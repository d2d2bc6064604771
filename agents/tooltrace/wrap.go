/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tooltrace

import (
	"context"

	"github.com/chainguard-dev/clog"
)

// Func is the shape of a traceable tool.
type Func[In, Out any] func(ctx context.Context, in In) (Out, error)

// Wrap returns f instrumented by t. The returned function behaves exactly like
// f: results, errors and panics pass through unchanged. While t is active and
// tool calls are instrumented, every invocation is recorded as a component.
func Wrap[In, Out any](t *Tracer, meta Meta, f Func[In, Out]) Func[In, Out] {
	id := t.register(meta, f)
	return func(ctx context.Context, in In) (Out, error) {
		if !t.enabled() {
			return f(ctx, in)
		}
		inv := t.begin(ctx, id, in)
		if inv == nil {
			return f(ctx, in)
		}
		return invoke(inv, f, in)
	}
}

// register resolves the identity of f and stores the span attributes of meta.
func (t *Tracer) register(meta Meta, fn any) identity {
	id := resolveIdentity(meta, fn)

	if len(meta.Tags) > 0 {
		t.attrs.AddTags(id.name, meta.Tags...)
	}
	if len(meta.Metadata) > 0 {
		t.attrs.AddMetadata(id.name, meta.Metadata)
	}
	if len(meta.Metrics) > 0 {
		if err := t.attrs.AddMetrics(id.name, meta.Metrics...); err != nil {
			clog.FromContext(context.Background()).With("tool", id.name).Warn("Skipping invalid metrics", "error", err)
		}
	}
	if meta.Feedback != nil {
		t.attrs.AddFeedback(id.name, meta.Feedback)
	}
	return id
}

// invoke runs f under inv, recording its outcome before returning or
// re-panicking with the original value.
func invoke[In, Out any](inv *invocation, f Func[In, Out], in In) (out Out, err error) {
	completed := false
	defer func() {
		if completed {
			return
		}
		r := recover()
		if r == nil {
			// runtime.Goexit
			inv.exited()
			return
		}
		inv.panicked(r)
		panic(r)
	}()

	out, err = f(inv.ctx, in)
	completed = true
	inv.succeed(out, err)
	return out, err
}
