/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package agenttrace

import (
	"time"
)

// ComponentType tags the kind of work a Component records.
type ComponentType string

const (
	ComponentTool  ComponentType = "tool"
	ComponentAgent ComponentType = "agent"
	ComponentLLM   ComponentType = "llm"
)

// ErrorCode is the fixed code recorded for failed invocations.
const ErrorCode = 500

// ErrorInfo is the structured error payload of a failed invocation.
type ErrorInfo struct {
	Code    int            `json:"code"`
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

// Metric is a named score attached to a component.
type Metric struct {
	Name      string         `json:"name"`
	Score     float64        `json:"score"`
	Reasoning string         `json:"reasoning"`
	Cost      *float64       `json:"cost"`
	Latency   *float64       `json:"latency"`
	Metadata  map[string]any `json:"metadata"`
	Config    map[string]any `json:"config"`
}

// NetworkCall records an outbound request made while a component was running.
type NetworkCall struct {
	URL           string    `json:"url"`
	Method        string    `json:"method"`
	StatusCode    int       `json:"status_code"`
	RequestBytes  int64     `json:"request_bytes"`
	ResponseBytes int64     `json:"response_bytes"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Error         string    `json:"error,omitempty"`
}

// Interaction records a user-facing input or output observed during a component.
type Interaction struct {
	ID        string    `json:"id"`
	Type      string    `json:"interaction_type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ComponentInfo holds the static description of the traced operation.
type ComponentInfo struct {
	ToolType   string   `json:"tool_type"`
	Version    string   `json:"version"`
	MemoryUsed uint64   `json:"memory_used"`
	Tags       []string `json:"tags"`
}

// ComponentData holds the sanitized payloads of one invocation.
type ComponentData struct {
	Input       any    `json:"input"`
	Output      any    `json:"output"`
	MemoryUsed  uint64 `json:"memory_used"`
	GroundTruth any    `json:"gt,omitempty"`
}

// Component is the record of one traced invocation.
type Component struct {
	ID           string        `json:"id"`
	HashID       string        `json:"hash_id"`
	SourceHashID *string       `json:"source_hash_id"`
	Type         ComponentType `json:"type"`
	Name         string        `json:"name"`
	ParentID     *string       `json:"parent_id"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Error        *ErrorInfo    `json:"error"`
	Info         ComponentInfo `json:"info"`
	Data         ComponentData `json:"data"`
	Metrics      []Metric      `json:"metrics"`
	NetworkCalls []NetworkCall `json:"network_calls"`
	Interactions []Interaction `json:"interactions"`
}

// Parent returns the parent component id, or "" for a root component.
func (c *Component) Parent() string {
	if c.ParentID == nil {
		return ""
	}
	return *c.ParentID
}

// Duration returns how long the invocation ran.
func (c *Component) Duration() time.Duration {
	return c.EndTime.Sub(c.StartTime)
}

// Fragment is one finished span delivered for aggregation, keyed by its trace id.
type Fragment struct {
	TraceID    string         `json:"trace_id"`
	SpanID     string         `json:"span_id"`
	ParentID   string         `json:"parent_id,omitempty"`
	Name       string         `json:"name"`
	Status     string         `json:"status,omitempty"`
	StartTime  time.Time      `json:"start_time"`
	EndTime    time.Time      `json:"end_time"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Component  *Component     `json:"component,omitempty"`
}

// IsRoot reports whether the fragment has no parent. A root closes its trace.
func (f Fragment) IsRoot() bool {
	return f.ParentID == ""
}

// FragmentFor wraps a component into the fragment of the given trace.
func FragmentFor(traceID string, c *Component) Fragment {
	status := "ok"
	if c.Error != nil {
		status = "error"
	}
	return Fragment{
		TraceID:   traceID,
		SpanID:    c.ID,
		ParentID:  c.Parent(),
		Name:      c.Name,
		Status:    status,
		StartTime: c.StartTime,
		EndTime:   c.EndTime,
		Component: c,
	}
}
