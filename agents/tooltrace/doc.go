/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package tooltrace instruments tool functions so that every invocation produces a
Component record.

# Overview

A Tracer owns the shared attribute state (agenttrace.Context), the activation flags
and the Emitter that receives finished components. Functions are wrapped explicitly:

	tracer, err := tooltrace.New(aggregator)
	if err != nil {
		return err
	}
	tracer.Start()

	search := tooltrace.Wrap(tracer, tooltrace.Meta{Name: "web-search", Version: "2.1.0"},
		func(ctx context.Context, q Query) ([]Result, error) {
			return client.Search(ctx, q)
		})

	results, err := search(ctx, Query{Text: "go generics"})

The wrapped function has the same signature and the same results as the original.
Errors are returned unchanged and panics are re-raised with their original value;
in both cases a component with a structured error is still emitted.

# Nesting

Wrapped functions receive a context that carries the current component. Calls to other
wrapped functions made with that context record it as their parent, and all of them
share one trace id. The outermost invocation has no parent and its component is the
root fragment that closes the trace.

# Asynchronous invocations

WrapAsync returns a function that starts the wrapped call on its own goroutine and
returns a Future. Bookkeeping before the call happens on the caller's goroutine;
bookkeeping after the call happens when it completes, before the Future resolves.

# Activation

Tracing can be toggled at runtime with Start/Stop and InstrumentToolCalls. The flags
are checked on every invocation; a disabled tracer calls the wrapped function directly
and records nothing.
*/
package tooltrace
