/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"context"

	"github.com/chainguard-dev/clog"
	"golang.org/x/sync/errgroup"
)

// Emitter receives finished fragments.
type Emitter interface {
	Add(ctx context.Context, f Fragment)
}

// FragmentCallback is a function that receives emitted fragments
type FragmentCallback func(context.Context, Fragment)

// byCodeEmitter implements Emitter by invoking callback functions
type byCodeEmitter struct {
	callbacks []FragmentCallback
}

// ByCode creates an Emitter that invokes the given callbacks for every fragment
func ByCode(callbacks ...FragmentCallback) Emitter {
	return &byCodeEmitter{
		callbacks: callbacks,
	}
}

// Add invokes all callbacks with the fragment in parallel
func (e *byCodeEmitter) Add(ctx context.Context, f Fragment) {
	g := new(errgroup.Group)
	for _, callback := range e.callbacks {
		if callback != nil {
			g.Go(func() error {
				callback(ctx, f)
				return nil
			})
		}
	}
	// Callbacks never fail.
	_ = g.Wait()
}

// NewDefaultEmitter creates an emitter that logs every fragment to clog
func NewDefaultEmitter() Emitter {
	return ByCode(func(ctx context.Context, f Fragment) {
		clog.FromContext(ctx).With(
			"trace_id", f.TraceID,
			"span_id", f.SpanID,
			"parent_id", f.ParentID,
			"duration_ms", f.EndTime.Sub(f.StartTime).Milliseconds(),
		).Info("Component recorded", "name", f.Name, "status", f.Status)
	})
}
