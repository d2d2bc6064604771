/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"
)

// ErrInvalidMetric is returned when a metric cannot be registered.
var ErrInvalidMetric = errors.New("invalid metric")

// SpanAttributes are the tags, metadata, metrics and feedback registered for a
// span name ahead of its next invocation.
type SpanAttributes struct {
	Name     string
	Tags     []string
	Metadata map[string]any
	Metrics  []Metric
	Feedback any
}

type attributeEntry struct {
	mu    sync.Mutex
	attrs SpanAttributes
}

// Context is the shared attribute state of a tracer. Each span name has its
// own entry and lock so registrations for different names never contend.
type Context struct {
	mu      sync.RWMutex
	entries map[string]*attributeEntry
}

// NewContext creates an empty trace context.
func NewContext() *Context {
	return &Context{
		entries: make(map[string]*attributeEntry),
	}
}

func (c *Context) entry(name string) *attributeEntry {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	if ok {
		return e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[name]; ok {
		return e
	}
	e = &attributeEntry{attrs: SpanAttributes{Name: name}}
	c.entries[name] = e
	return e
}

// AddTags appends tags to the named span.
func (c *Context) AddTags(name string, tags ...string) {
	if len(tags) == 0 {
		return
	}
	e := c.entry(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attrs.Tags = append(e.attrs.Tags, tags...)
}

// AddMetadata merges metadata into the named span.
func (c *Context) AddMetadata(name string, metadata map[string]any) {
	if len(metadata) == 0 {
		return
	}
	e := c.entry(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.attrs.Metadata == nil {
		e.attrs.Metadata = make(map[string]any, len(metadata))
	}
	maps.Copy(e.attrs.Metadata, metadata)
}

// AddMetrics registers metrics on the named span. Valid metrics are kept even
// when others are rejected; the returned error joins every rejection.
func (c *Context) AddMetrics(name string, metrics ...Metric) error {
	var errs []error
	accepted := make([]Metric, 0, len(metrics))
	for _, m := range metrics {
		if err := ValidateMetric(m); err != nil {
			errs = append(errs, err)
			continue
		}
		accepted = append(accepted, m)
	}

	if len(accepted) > 0 {
		e := c.entry(name)
		e.mu.Lock()
		e.attrs.Metrics = append(e.attrs.Metrics, accepted...)
		e.mu.Unlock()
	}
	return errors.Join(errs...)
}

// AddFeedback sets the feedback of the named span.
func (c *Context) AddFeedback(name string, feedback any) {
	e := c.entry(name)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attrs.Feedback = feedback
}

// Peek returns a copy of the attributes currently registered for name.
func (c *Context) Peek(name string) SpanAttributes {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		return SpanAttributes{Name: name}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attrs.clone()
}

// Consume returns the attributes registered for name with metric names made
// unique, and resets the entry so the next invocation starts empty.
func (c *Context) Consume(name string) SpanAttributes {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		return SpanAttributes{Name: name}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.attrs.clone()
	out.Metrics = ResolveMetricNames(out.Metrics)
	e.attrs = SpanAttributes{Name: name}
	return out
}

// Reset drops every registered entry.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

func (a SpanAttributes) clone() SpanAttributes {
	out := SpanAttributes{
		Name:     a.Name,
		Tags:     slices.Clone(a.Tags),
		Metadata: maps.Clone(a.Metadata),
		Feedback: a.Feedback,
	}
	if len(a.Metrics) > 0 {
		out.Metrics = make([]Metric, len(a.Metrics))
		for i, m := range a.Metrics {
			m.Metadata = maps.Clone(m.Metadata)
			m.Config = maps.Clone(m.Config)
			out.Metrics[i] = m
		}
	}
	return out
}

// ValidateMetric checks that a metric can be attached to a component.
func ValidateMetric(m Metric) error {
	if m.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidMetric)
	}
	if !finite(m.Score) {
		return fmt.Errorf("%w: score of %q must be finite", ErrInvalidMetric, m.Name)
	}
	if (m.Cost != nil && !finite(*m.Cost)) || (m.Latency != nil && !finite(*m.Latency)) {
		return fmt.Errorf("%w: cost and latency of %q must be finite", ErrInvalidMetric, m.Name)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ResolveMetricNames renames metrics so that every name in the result is
// unique. The n-th repeat of a base name becomes base_n.
func ResolveMetricNames(metrics []Metric) []Metric {
	if len(metrics) == 0 {
		return []Metric{}
	}

	counts := make(map[string]int, len(metrics))
	resolved := make(map[string]struct{}, len(metrics))
	out := make([]Metric, 0, len(metrics))
	for _, m := range metrics {
		base := m.Name
		n := counts[base]
		name := base
		if n > 0 {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		// A caller may have registered "acc_1" literally.
		for {
			if _, taken := resolved[name]; !taken {
				break
			}
			n++
			name = fmt.Sprintf("%s_%d", base, n)
		}
		counts[base] = n + 1
		resolved[name] = struct{}{}
		m.Name = name
		out = append(out, m)
	}
	return out
}
