/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package traceexport

import (
	"cmp"
	"slices"
	"time"

	"chainguard.dev/catalyst/agents/agenttrace"
	"chainguard.dev/catalyst/agents/traceexport/sysinfo"
)

// Trace is the canonical document written for a finalized trace.
type Trace struct {
	ID          string    `json:"id"`
	TraceName   string    `json:"trace_name"`
	ProjectName string    `json:"project_name"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Metadata    Metadata  `json:"metadata"`
	// Spans holds the root spans; every other span hangs below its parent.
	Spans    []*Span `json:"spans"`
	Workflow []any   `json:"workflow"`
}

// Metadata describes where and how a trace was recorded.
type Metadata struct {
	SystemInfo sysinfo.SystemInfo `json:"system_info"`
	Resources  sysinfo.Resources  `json:"resources"`
	TotalSpans int                `json:"total_spans"`
	Errors     int                `json:"errors"`
}

// Span is one fragment placed in the trace tree.
type Span struct {
	ID         string                `json:"id"`
	Name       string                `json:"name"`
	ParentID   *string               `json:"parent_id"`
	Status     string                `json:"status,omitempty"`
	StartTime  time.Time             `json:"start_time"`
	EndTime    time.Time             `json:"end_time"`
	Attributes map[string]any        `json:"attributes,omitempty"`
	Component  *agenttrace.Component `json:"component,omitempty"`
	Children   []*Span               `json:"children"`
}

// Convert builds the canonical trace from fragments in any arrival order.
// Fragments whose parent is not part of the trace are kept as roots, and a
// repeated span id keeps its first fragment.
func Convert(traceID, projectName string, fragments []agenttrace.Fragment) *Trace {
	ordered := slices.Clone(fragments)
	slices.SortStableFunc(ordered, func(a, b agenttrace.Fragment) int {
		if c := a.StartTime.Compare(b.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(a.SpanID, b.SpanID)
	})

	t := &Trace{
		ID:          traceID,
		ProjectName: projectName,
		Spans:       []*Span{},
		Workflow:    []any{},
	}

	spans := make(map[string]*Span, len(ordered))
	nodes := make([]*Span, 0, len(ordered))
	for _, f := range ordered {
		if _, dup := spans[f.SpanID]; dup {
			continue
		}
		s := &Span{
			ID:         f.SpanID,
			Name:       f.Name,
			Status:     f.Status,
			StartTime:  f.StartTime,
			EndTime:    f.EndTime,
			Attributes: f.Attributes,
			Component:  f.Component,
			Children:   []*Span{},
		}
		if f.ParentID != "" {
			parent := f.ParentID
			s.ParentID = &parent
		}
		spans[f.SpanID] = s
		nodes = append(nodes, s)

		if t.StartTime.IsZero() || f.StartTime.Before(t.StartTime) {
			t.StartTime = f.StartTime
		}
		if f.EndTime.After(t.EndTime) {
			t.EndTime = f.EndTime
		}
		if f.Status == "error" {
			t.Metadata.Errors++
		}
	}
	t.Metadata.TotalSpans = len(nodes)

	for _, s := range nodes {
		var parent *Span
		if s.ParentID != nil && !cyclic(spans, s) {
			parent = spans[*s.ParentID]
		}
		if parent == nil {
			t.Spans = append(t.Spans, s)
			continue
		}
		parent.Children = append(parent.Children, s)
	}

	for _, s := range t.Spans {
		if s.ParentID == nil {
			t.TraceName = s.Name
			break
		}
	}
	if t.TraceName == "" && len(t.Spans) > 0 {
		t.TraceName = t.Spans[0].Name
	}
	return t
}

// cyclic reports whether following parents from s leads back to s.
func cyclic(spans map[string]*Span, s *Span) bool {
	for cur, steps := s, 0; cur.ParentID != nil && steps <= len(spans); steps++ {
		next, ok := spans[*cur.ParentID]
		if !ok {
			return false
		}
		if next == s {
			return true
		}
		cur = next
	}
	return false
}

// Walk visits every span of the trace depth first, parents before children.
func (t *Trace) Walk(fn func(depth int, s *Span)) {
	var visit func(int, *Span)
	visit = func(depth int, s *Span) {
		fn(depth, s)
		for _, c := range s.Children {
			visit(depth+1, c)
		}
	}
	for _, s := range t.Spans {
		visit(0, s)
	}
}
