/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package report

import (
	"fmt"
	"path"
	"strings"

	"chainguard.dev/catalyst/agents/traceexport"
	"chainguard.dev/sdk/pathtree"
)

// Tree renders the span hierarchy of t. Each span shows its status and
// duration, failed spans are marked and carry their error message.
func Tree(t *traceexport.Trace) (string, bool) {
	tree := pathtree.New()
	tree.PrintOption = pathtree.KeyValueLabel
	failed := false

	var visit func(parent string, spans []*traceexport.Span)
	visit = func(parent string, spans []*traceexport.Span) {
		seen := make(map[string]int, len(spans))
		for _, s := range spans {
			// Sibling spans commonly share a name.
			seg := segment(s.Name)
			seen[seg]++
			if n := seen[seg]; n > 1 {
				seg = fmt.Sprintf("%s#%d", seg, n)
			}
			p := path.Join(parent, seg)

			value := fmt.Sprintf("%s %s", s.Status, duration(s))
			label := ""
			if s.Status == "error" {
				failed = true
				value = "❌ " + value
				label = errorMessage(s)
			}
			if err := tree.Add(p, value, label); err != nil {
				_ = tree.Update(p, value, label)
			}
			visit(p, s.Children)
		}
	}
	visit("/", t.Spans)

	return tree.String(), failed
}

func segment(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	if name == "" {
		return "unnamed"
	}
	return name
}
