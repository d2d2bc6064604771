/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"chainguard.dev/catalyst/agents/traceexport"
)

// Generator renders a trace, returning the report and whether any span failed.
type Generator func(t *traceexport.Trace) (string, bool)

// Load reads a trace document written by the finalizer.
func Load(path string) (*traceexport.Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	var t traceexport.Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decoding trace %s: %w", path, err)
	}
	return &t, nil
}

func duration(s *traceexport.Span) string {
	d := s.EndTime.Sub(s.StartTime)
	if d < 0 {
		d = 0
	}
	return d.Round(time.Microsecond).String()
}

func errorMessage(s *traceexport.Span) string {
	if s.Component == nil || s.Component.Error == nil {
		return ""
	}
	return s.Component.Error.Message
}
