/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"context"
	"sync"
)

// Frame identifies the component currently executing on a call chain.
// Frames are immutable; entering a nested component derives a new context
// and the caller's context keeps pointing at the enclosing frame, so the
// previous parent is restored on every exit path.
type Frame struct {
	TraceID     string
	ComponentID string
	ParentID    string
	Name        string

	calls *Calls
}

// Calls collects the network calls and interactions of one invocation.
type Calls struct {
	mu           sync.Mutex
	network      []NetworkCall
	interactions []Interaction
}

// NewCalls creates an empty bucket.
func NewCalls() *Calls {
	return &Calls{}
}

// AddNetworkCall appends a network call to the bucket.
func (c *Calls) AddNetworkCall(call NetworkCall) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.network = append(c.network, call)
}

// AddInteraction appends an interaction to the bucket.
func (c *Calls) AddInteraction(i Interaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interactions = append(c.interactions, i)
}

// Snapshot returns copies of the recorded calls. Both slices are non-nil.
func (c *Calls) Snapshot() ([]NetworkCall, []Interaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	network := make([]NetworkCall, len(c.network))
	copy(network, c.network)
	interactions := make([]Interaction, len(c.interactions))
	copy(interactions, c.interactions)
	return network, interactions
}

// contextKey is used for storing frames in context.Context
type contextKey string

const frameKey contextKey = "agenttrace_frame"

// WithFrame returns a context whose current component is f.
func WithFrame(ctx context.Context, f Frame, calls *Calls) context.Context {
	f.calls = calls
	return context.WithValue(ctx, frameKey, f)
}

// FrameFromContext returns the current frame, if any.
func FrameFromContext(ctx context.Context) (Frame, bool) {
	f, ok := ctx.Value(frameKey).(Frame)
	return f, ok
}

// CurrentParent returns the id of the component executing on ctx, or "".
func CurrentParent(ctx context.Context) string {
	if f, ok := FrameFromContext(ctx); ok {
		return f.ComponentID
	}
	return ""
}

// RecordNetworkCall attaches a network call to the component executing on ctx.
// It reports false when no traced component is running.
func RecordNetworkCall(ctx context.Context, call NetworkCall) bool {
	f, ok := FrameFromContext(ctx)
	if !ok || f.calls == nil {
		return false
	}
	f.calls.AddNetworkCall(call)
	return true
}

// RecordInteraction attaches an interaction to the component executing on ctx.
// It reports false when no traced component is running.
func RecordInteraction(ctx context.Context, i Interaction) bool {
	f, ok := FrameFromContext(ctx)
	if !ok || f.calls == nil {
		return false
	}
	f.calls.AddInteraction(i)
	return true
}
