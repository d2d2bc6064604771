/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"chainguard.dev/catalyst/agents/agenttrace"
	"chainguard.dev/catalyst/agents/tooltrace"
)

type search struct{}

type calculator struct{}

// toolbox dispatches to its tools and is traced as one container component.
type toolbox struct {
	search     search
	calculator calculator
}

func (*toolbox) Tools() []any { return []any{search{}, calculator{}} }

func (search) lookup(_ context.Context, q string) ([]string, error) {
	return []string{"result for " + q, "another result for " + q}, nil
}

func (calculator) score(_ context.Context, results []string) (float64, error) {
	if len(results) == 0 {
		return 0, errors.New("nothing to score")
	}
	return 1 / float64(len(results)), nil
}

// newAgent wires the demo tools under one traced root. client carries the
// tracer's transport so requests to pingURL are recorded when network
// instrumentation is on.
func newAgent(t *tooltrace.Tracer, client *http.Client, pingURL string) tooltrace.Func[string, string] {
	tb := &toolbox{}

	lookup := tooltrace.Wrap(t, tooltrace.Meta{Instance: tb.search, Tags: []string{"retrieval"}}, tb.search.lookup)
	score := tooltrace.WrapAsync(t, tooltrace.Meta{Instance: tb.calculator}, tb.calculator.score)
	dispatch := tooltrace.Wrap(t, tooltrace.Meta{Instance: tb}, func(ctx context.Context, q string) ([]string, error) {
		return lookup(ctx, q)
	})
	ping := tooltrace.Wrap(t, tooltrace.Meta{Name: "ping"}, func(ctx context.Context, url string) (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return 0, fmt.Errorf("creating request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return 0, fmt.Errorf("pinging %s: %w", url, err)
		}
		resp.Body.Close()
		return resp.StatusCode, nil
	})

	return tooltrace.Wrap(t, tooltrace.Meta{Name: "agent"}, func(ctx context.Context, q string) (string, error) {
		t.RecordInteraction(ctx, "input", q)

		results, err := dispatch(ctx, q)
		if err != nil {
			return "", err
		}
		confidence, err := score(ctx, results).Wait()
		if err != nil {
			return "", err
		}
		if err := t.Attributes().AddMetrics("agent", agenttrace.Metric{Name: "confidence", Score: confidence}); err != nil {
			return "", err
		}
		// Failures of optional tools are recorded but do not fail the agent.
		if _, err := ping(ctx, pingURL); err != nil {
			results = append(results, "(offline)")
		}

		answer := strings.Join(results, "; ")
		t.RecordInteraction(ctx, "output", answer)
		return answer, nil
	})
}
