/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package tooltrace

import (
	"net/http"

	"chainguard.dev/catalyst/agents/agenttrace"
)

// Transport returns a RoundTripper that records every request made on behalf of
// a traced component as one of its network calls. Requests whose context
// carries no component, or made while network instrumentation is off, are
// passed through untouched. A nil base uses http.DefaultTransport.
func (t *Tracer) Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &roundTripper{t: t, base: base}
}

type roundTripper struct {
	t    *Tracer
	base http.RoundTripper
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if !rt.t.active.Load() || !rt.t.network.Load() {
		return rt.base.RoundTrip(req)
	}
	if _, ok := agenttrace.FrameFromContext(req.Context()); !ok {
		return rt.base.RoundTrip(req)
	}

	call := agenttrace.NetworkCall{
		URL:          req.URL.Redacted(),
		Method:       req.Method,
		RequestBytes: max(req.ContentLength, 0),
		StartTime:    rt.t.now(),
	}
	resp, err := rt.base.RoundTrip(req)
	call.EndTime = rt.t.now()
	if err != nil {
		call.Error = err.Error()
	} else {
		call.StatusCode = resp.StatusCode
		call.ResponseBytes = max(resp.ContentLength, 0)
	}
	agenttrace.RecordNetworkCall(req.Context(), call)
	return resp, err
}
