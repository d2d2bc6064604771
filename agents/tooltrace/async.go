/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tooltrace

import (
	"context"
)

// Future is the pending result of an asynchronous tool call.
type Future[Out any] struct {
	done     chan struct{}
	out      Out
	err      error
	panicked bool
	panicVal any
}

func newFuture[Out any]() *Future[Out] {
	return &Future[Out]{done: make(chan struct{})}
}

// Done is closed once the call has finished and its component was recorded.
func (f *Future[Out]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the call finishes and returns its result. If the call
// panicked, Wait panics with the same value.
func (f *Future[Out]) Wait() (Out, error) {
	<-f.done
	if f.panicked {
		panic(f.panicVal)
	}
	return f.out, f.err
}

// AsyncFunc is the shape of an asynchronous traceable tool.
type AsyncFunc[In, Out any] func(ctx context.Context, in In) *Future[Out]

// Go runs f on a new goroutine and returns its future.
func Go[In, Out any](ctx context.Context, f Func[In, Out], in In) *Future[Out] {
	fut := newFuture[Out]()
	go func() {
		defer close(fut.done)
		defer capturePanic(fut)
		fut.out, fut.err = f(ctx, in)
	}()
	return fut
}

// WrapAsync is the asynchronous form of Wrap. Bookkeeping before the call runs
// in the caller; only f runs on its own goroutine, and the component is
// recorded before the future completes.
func WrapAsync[In, Out any](t *Tracer, meta Meta, f Func[In, Out]) AsyncFunc[In, Out] {
	id := t.register(meta, f)
	return func(ctx context.Context, in In) *Future[Out] {
		if !t.enabled() {
			return Go(ctx, f, in)
		}
		inv := t.begin(ctx, id, in)
		if inv == nil {
			return Go(ctx, f, in)
		}

		fut := newFuture[Out]()
		go func() {
			returned := false
			defer close(fut.done)
			defer func() {
				switch {
				case fut.panicked:
					inv.panicked(fut.panicVal)
				case !returned:
					// runtime.Goexit
					inv.exited()
				}
			}()
			defer capturePanic(fut)

			fut.out, fut.err = f(inv.ctx, in)
			returned = true
			inv.succeed(fut.out, fut.err)
		}()
		return fut
	}
}

func capturePanic[Out any](fut *Future[Out]) {
	if r := recover(); r != nil {
		fut.panicked = true
		fut.panicVal = r
	}
}
