/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package upload

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalyst_upload_tasks_total",
			Help: "Upload tasks by outcome",
		},
		[]string{"outcome"},
	)

	uploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalyst_upload_duration_seconds",
			Help:    "Time to deliver an upload, retries included",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	uploadQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalyst_upload_queue_depth",
			Help: "Upload tasks waiting for a worker",
		},
	)
)
