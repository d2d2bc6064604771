/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package traceexport turns recorded fragments into uploadable trace artifacts.
//
// An Aggregator buffers fragments by trace id. When the root fragment of a
// trace arrives, the trace is handed to a TraceHandler, normally a Finalizer,
// which builds the canonical Trace document, packages the program's source
// files, writes <dir>/<trace id>.json and submits an upload.Request.
//
// The Aggregator is an agenttrace.Emitter, so it plugs straight into a tool
// tracer:
//
//	fin, err := traceexport.NewFinalizer(queue, routing, traceexport.WithSourceFiles(files...))
//	if err != nil {
//		return err
//	}
//	agg, err := traceexport.NewAggregator(fin, 0)
//	if err != nil {
//		return err
//	}
//	tracer, err := tooltrace.New(agg)
//
// Programs already instrumented with OpenTelemetry can register a
// SpanExporter with their TracerProvider instead.
//
// Fragments arriving for a trace that was already finalized are dropped and
// counted in catalyst_trace_stragglers_total. Shutdown finalizes whatever is
// still buffered.
package traceexport
