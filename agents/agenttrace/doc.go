/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

/*
Package agenttrace provides the data model and shared state for tracing agent tool invocations.

# Overview

This package contains the foundational types used by the instrumentation and export layers:

  - Component: the record of one traced invocation (timing, memory, payloads, metrics, errors)
  - Fragment: a finished span keyed by its trace id, optionally carrying a Component
  - Context: per-span-name attributes (tags, metadata, metrics, feedback) registered ahead of an invocation
  - Frame: the component currently executing on a call chain, carried in context.Context
  - Emitter: the sink that receives finished fragments

# Separation of Concerns

The agenttrace package provides low-level primitives. Wrapping functions and building
components lives in the tooltrace package; correlating fragments into traces and
packaging them lives in the traceexport package.

# Usage

Register attributes for the next invocation of a span:

	tc := agenttrace.NewContext()
	tc.AddTags("web-search", "retrieval")
	if err := tc.AddMetrics("web-search", agenttrace.Metric{Name: "relevance", Score: 0.8}); err != nil {
		log.Printf("rejected metrics: %v", err)
	}

Attach a network call to whatever component is running on ctx:

	agenttrace.RecordNetworkCall(ctx, agenttrace.NetworkCall{
		URL:        "https://example.com/search",
		Method:     http.MethodGet,
		StatusCode: http.StatusOK,
	})
*/
package agenttrace
