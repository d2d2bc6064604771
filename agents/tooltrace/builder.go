/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tooltrace

import (
	"context"
	"time"

	"chainguard.dev/catalyst/agents/agenttrace"
)

// BuildParams are the per-invocation inputs to Build.
type BuildParams struct {
	ComponentID string
	HashID      string
	Name        string
	ToolType    string
	Version     string
	MemoryUsed  uint64
	StartTime   time.Time
	// EndTime is the moment the invocation finished. Zero means now.
	EndTime     time.Time
	Args        []any
	Kwargs      map[string]any
	Output      any
	Error       *agenttrace.ErrorInfo
	GroundTruth any
}

// Build assembles the component of one invocation. The parent is the component
// running on ctx. Attributes registered for the name are consumed, so they
// apply to exactly one invocation.
func (t *Tracer) Build(ctx context.Context, p BuildParams) *agenttrace.Component {
	attrs := t.attrs.Consume(p.Name)

	network, interactions := t.endComponent(p.ComponentID)
	if !t.network.Load() {
		network = []agenttrace.NetworkCall{}
	}
	if !t.interactions.Load() {
		interactions = []agenttrace.Interaction{}
	}

	tags := attrs.Tags
	if tags == nil {
		tags = []string{}
	}
	metrics := attrs.Metrics
	if metrics == nil {
		metrics = []agenttrace.Metric{}
	}
	for i := range metrics {
		metrics[i].Metadata = SanitizeMap(metrics[i].Metadata)
		metrics[i].Config = SanitizeMap(metrics[i].Config)
	}

	end := p.EndTime
	if end.IsZero() {
		end = t.now()
	}

	var parentID *string
	if parent := agenttrace.CurrentParent(ctx); parent != "" {
		parentID = &parent
	}

	var output any
	if p.Error == nil {
		output = Sanitize(p.Output)
	}

	return &agenttrace.Component{
		ID:        p.ComponentID,
		HashID:    p.HashID,
		Type:      agenttrace.ComponentTool,
		Name:      p.Name,
		ParentID:  parentID,
		StartTime: p.StartTime,
		EndTime:   end,
		Error:     p.Error,
		Info: agenttrace.ComponentInfo{
			ToolType:   p.ToolType,
			Version:    p.Version,
			MemoryUsed: p.MemoryUsed,
			Tags:       tags,
		},
		Data: agenttrace.ComponentData{
			Input:       SanitizeInput(p.Args, p.Kwargs),
			Output:      output,
			MemoryUsed:  p.MemoryUsed,
			GroundTruth: Sanitize(p.GroundTruth),
		},
		Metrics:      metrics,
		NetworkCalls: network,
		Interactions: interactions,
	}
}
