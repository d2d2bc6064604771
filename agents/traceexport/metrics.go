/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package traceexport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fragmentsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalyst_trace_fragments_total",
			Help: "Total number of fragments received by the aggregator",
		},
	)

	tracesFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalyst_traces_finalized_total",
			Help: "Total number of traces finalized, by what triggered finalization",
		},
		[]string{"reason"},
	)

	finalizationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalyst_trace_finalization_failures_total",
			Help: "Total number of traces dropped because finalization failed",
		},
	)

	stragglers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalyst_trace_stragglers_total",
			Help: "Total number of fragments dropped because their trace was already finalized",
		},
	)

	tracesBuffering = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalyst_traces_buffering",
			Help: "Number of traces waiting for their root fragment",
		},
	)
)
