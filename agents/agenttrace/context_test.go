/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestFrameNesting(t *testing.T) {
	ctx := context.Background()
	if got := CurrentParent(ctx); got != "" {
		t.Errorf("parent of empty context: got = %q, wanted = empty", got)
	}

	outer := WithFrame(ctx, Frame{TraceID: "t1", ComponentID: "outer"}, NewCalls())
	inner := WithFrame(outer, Frame{TraceID: "t1", ComponentID: "inner", ParentID: "outer"}, NewCalls())

	if got := CurrentParent(inner); got != "inner" {
		t.Errorf("inner parent: got = %q, wanted = inner", got)
	}
	// The enclosing context is untouched by the nested frame.
	if got := CurrentParent(outer); got != "outer" {
		t.Errorf("outer parent: got = %q, wanted = outer", got)
	}

	f, ok := FrameFromContext(inner)
	if !ok {
		t.Fatal("frame from inner: got = none, wanted = frame")
	}
	if f.TraceID != "t1" || f.ParentID != "outer" {
		t.Errorf("frame: got = %+v, wanted trace t1 parent outer", f)
	}
}

func TestRecordCallsWithoutFrame(t *testing.T) {
	ctx := context.Background()
	if RecordNetworkCall(ctx, NetworkCall{URL: "http://example.com"}) {
		t.Error("record network call without frame: got = true, wanted = false")
	}
	if RecordInteraction(ctx, Interaction{Type: "input"}) {
		t.Error("record interaction without frame: got = true, wanted = false")
	}
}

func TestRecordCallsConcurrently(t *testing.T) {
	calls := NewCalls()
	ctx := WithFrame(context.Background(), Frame{ComponentID: "c"}, calls)

	const n = 64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := range n {
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				RecordNetworkCall(ctx, NetworkCall{URL: "http://example.com", StartTime: time.Now()})
			} else {
				RecordInteraction(ctx, Interaction{Type: "output", Content: randomString()})
			}
		}(i)
	}
	wg.Wait()

	network, interactions := calls.Snapshot()
	if len(network) != n/2 {
		t.Errorf("network calls: got = %d, wanted = %d", len(network), n/2)
	}
	if len(interactions) != n/2 {
		t.Errorf("interactions: got = %d, wanted = %d", len(interactions), n/2)
	}
}

func TestEmptySnapshotIsNonNil(t *testing.T) {
	network, interactions := NewCalls().Snapshot()
	if network == nil || interactions == nil {
		t.Errorf("snapshot: got = (%v, %v), wanted = non-nil empty slices", network, interactions)
	}
}

func TestFragmentFor(t *testing.T) {
	parent := "p1"
	c := &Component{ID: "c1", Name: "tool", ParentID: &parent, Error: &ErrorInfo{Code: ErrorCode}}
	f := FragmentFor("trace", c)
	if f.IsRoot() {
		t.Error("fragment with parent: got root, wanted child")
	}
	if f.Status != "error" || f.SpanID != "c1" || f.TraceID != "trace" {
		t.Errorf("fragment: got = %+v", f)
	}

	root := FragmentFor("trace", &Component{ID: "r"})
	if !root.IsRoot() {
		t.Error("fragment without parent: got child, wanted root")
	}
}

func TestByCodeEmitter(t *testing.T) {
	var mu sync.Mutex
	var got []Fragment
	cb := func(_ context.Context, f Fragment) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, f)
	}

	e := ByCode(cb, nil, cb)
	e.Add(context.Background(), Fragment{SpanID: "s"})
	if len(got) != 2 {
		t.Errorf("callback invocations: got = %d, wanted = 2", len(got))
	}

	// The default emitter only logs and must not panic.
	NewDefaultEmitter().Add(context.Background(), Fragment{SpanID: "s"})
}
