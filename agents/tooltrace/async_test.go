/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tooltrace

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapAsyncResult(t *testing.T) {
	tr, rec := newTestTracer(t)
	release := make(chan struct{})
	wrapped := WrapAsync(tr, Meta{Name: "slow"}, func(_ context.Context, in int) (int, error) {
		<-release
		return in + 1, nil
	})

	fut := wrapped(context.Background(), 41)
	select {
	case <-fut.Done():
		t.Fatal("future completed before the call was released")
	default:
	}
	if n := len(rec.components()); n != 0 {
		t.Errorf("components before completion = %d, wanted = 0", n)
	}

	close(release)
	got, err := fut.Wait()
	if err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	if got != 42 {
		t.Errorf("Wait() = %d, wanted = %d", got, 42)
	}
	// The component is recorded before the future completes.
	comps := rec.components()
	require.Len(t, comps, 1)
	if comps[0].Data.Output != 42 {
		t.Errorf("Output = %v, wanted = %v", comps[0].Data.Output, 42)
	}
}

func TestWrapAsyncError(t *testing.T) {
	tr, rec := newTestTracer(t)
	want := errors.New("unreachable")
	wrapped := WrapAsync(tr, Meta{Name: "fetch"}, func(context.Context, string) ([]byte, error) {
		return nil, want
	})

	if _, err := wrapped(context.Background(), "https://example.com").Wait(); err != want {
		t.Errorf("Wait() = %v, wanted = %v", err, want)
	}
	c := rec.components()[0]
	require.NotNil(t, c.Error)
	if c.Error.Message != "unreachable" {
		t.Errorf("Error.Message = %q, wanted = %q", c.Error.Message, "unreachable")
	}
}

func TestWrapAsyncPanic(t *testing.T) {
	tr, rec := newTestTracer(t)
	wrapped := WrapAsync(tr, Meta{Name: "explode"}, func(context.Context, int) (int, error) {
		panic("async kaboom")
	})

	fut := wrapped(context.Background(), 1)
	<-fut.Done()
	require.PanicsWithValue(t, "async kaboom", func() {
		_, _ = fut.Wait()
	})
	c := rec.components()[0]
	require.NotNil(t, c.Error)
	if c.Error.Type != "panic" {
		t.Errorf("Error.Type = %q, wanted = %q", c.Error.Type, "panic")
	}
}

func TestWrapAsyncTypedNilError(t *testing.T) {
	tr, rec := newTestTracer(t)
	var typedNil *lookupError
	wrapped := WrapAsync(tr, Meta{Name: "lookup"}, func(context.Context, string) (int, error) {
		return 7, typedNil
	})

	got, err := wrapped(context.Background(), "k").Wait()
	if got != 7 {
		t.Errorf("Wait() = %d, wanted = 7", got)
	}
	if err != error(typedNil) {
		t.Errorf("err = %#v, wanted the original typed nil", err)
	}
	comps := rec.components()
	require.Len(t, comps, 1)
	require.NotNil(t, comps[0].Error)
	if comps[0].Error.Message != "<nil>" {
		t.Errorf("Error.Message = %q, wanted = %q", comps[0].Error.Message, "<nil>")
	}
}

func TestWrapAsyncGoexit(t *testing.T) {
	tr, rec := newTestTracer(t)
	tr.InstrumentNetworkCalls(true)
	wrapped := WrapAsync(tr, Meta{Name: "quitter"}, func(context.Context, int) (int, error) {
		runtime.Goexit()
		return 0, nil
	})

	got, err := wrapped(context.Background(), 1).Wait()
	if got != 0 || err != nil {
		t.Errorf("Wait() = (%d, %v), wanted = (0, nil)", got, err)
	}
	comps := rec.components()
	require.Len(t, comps, 1)
	require.NotNil(t, comps[0].Error)
	if comps[0].Error.Message != "goroutine exited" {
		t.Errorf("Error.Message = %q, wanted = %q", comps[0].Error.Message, "goroutine exited")
	}
	// The component's call bucket is released.
	n := 0
	tr.buckets.Range(func(any, any) bool {
		n++
		return true
	})
	if n != 0 {
		t.Errorf("open buckets = %d, wanted = 0", n)
	}
}

func TestWrapAsyncNestedUnderSync(t *testing.T) {
	tr, rec := newTestTracer(t)
	child := WrapAsync(tr, Meta{Name: "child"}, double)
	root := Wrap(tr, Meta{Name: "root"}, func(ctx context.Context, in int) (int, error) {
		a := child(ctx, in)
		b := child(ctx, in+1)
		x, err := a.Wait()
		if err != nil {
			return 0, err
		}
		y, err := b.Wait()
		if err != nil {
			return 0, err
		}
		return x + y, nil
	})

	got, err := root(context.Background(), 1)
	if err != nil {
		t.Fatalf("root() = %v", err)
	}
	if got != 6 {
		t.Errorf("root() = %d, wanted = %d", got, 6)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.fragments, 3)
	r := rec.fragments[2]
	for _, f := range rec.fragments[:2] {
		if f.ParentID != r.SpanID {
			t.Errorf("%s parent = %q, wanted = %q", f.Name, f.ParentID, r.SpanID)
		}
	}
}

func TestWrapAsyncInactive(t *testing.T) {
	tr, rec := newTestTracer(t)
	tr.Stop()

	got, err := WrapAsync(tr, Meta{}, double)(context.Background(), 3).Wait()
	if err != nil || got != 6 {
		t.Fatalf("Wait() = (%d, %v), wanted = (6, nil)", got, err)
	}
	if n := len(rec.components()); n != 0 {
		t.Errorf("components = %d, wanted = 0", n)
	}
}
