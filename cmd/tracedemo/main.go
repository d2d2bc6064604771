/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package main runs a small traced agent and exports its traces through the
// configured upload backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chainguard.dev/catalyst/agents/metrics"
	"chainguard.dev/catalyst/agents/tooltrace"
	"chainguard.dev/catalyst/agents/traceexport"
	"chainguard.dev/catalyst/agents/traceexport/report"
	"chainguard.dev/catalyst/agents/upload"
	"chainguard.dev/catalyst/agents/upload/gcsupload"
	"chainguard.dev/catalyst/agents/upload/httpupload"
	"chainguard.dev/catalyst/agents/upload/natsupload"
	"chainguard.dev/catalyst/agents/upload/retry"
	"chainguard.dev/catalyst/config"
	"cloud.google.com/go/storage"
	"github.com/chainguard-dev/clog"
	_ "github.com/chainguard-dev/clog/gcp/init"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sethvargo/go-envconfig"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type demoConfig struct {
	MetricsPort int           `env:"METRICS_PORT,default=2112"`
	Rounds      int           `env:"ROUNDS,default=3"`
	DrainTime   time.Duration `env:"DRAIN_TIMEOUT,default=30s"`
	PingURL     string        `env:"PING_URL,default=https://example.com"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var dc demoConfig
	if err := envconfig.Process(ctx, &dc); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		clog.FatalContextf(ctx, "loading config: %v", err)
	}

	go serveMetrics(ctx, dc.MetricsPort)

	tp := sdktrace.NewTracerProvider()
	defer func() {
		if err := tp.Shutdown(context.WithoutCancel(ctx)); err != nil {
			clog.ErrorContextf(ctx, "shutting down tracer provider: %v", err)
		}
	}()

	submitter, closeSubmitter, err := newSubmitter(ctx, cfg)
	if err != nil {
		clog.FatalContextf(ctx, "creating %s submitter: %v", cfg.Upload.Backend, err)
	}

	opts := []traceexport.FinalizerOption{traceexport.WithSourceFiles(cfg.SourceFiles...)}
	if cfg.OutputDir != "" {
		opts = append(opts, traceexport.WithOutputDir(cfg.OutputDir))
	}
	fin, err := traceexport.NewFinalizer(submitter, cfg.Routing(), opts...)
	if err != nil {
		clog.FatalContextf(ctx, "creating finalizer: %v", err)
	}
	agg, err := traceexport.NewAggregator(fin, cfg.Tombstones)
	if err != nil {
		clog.FatalContextf(ctx, "creating aggregator: %v", err)
	}

	toolMetrics := metrics.NewToolCalls("chainguard.dev/catalyst/cmd/tracedemo")
	toolMetrics.SetAttributeEnricher(func(_ context.Context, base []attribute.KeyValue) []attribute.KeyValue {
		return append(base,
			attribute.String("project", cfg.ProjectName),
			attribute.String("dataset", cfg.DatasetName),
		)
	})

	tracer, err := tooltrace.New(agg,
		tooltrace.WithInstrumentation(cfg.Instrumentation()),
		tooltrace.WithTracerProvider(tp),
		tooltrace.WithMetrics(toolMetrics),
	)
	if err != nil {
		clog.FatalContextf(ctx, "creating tracer: %v", err)
	}
	tracer.Start()

	clog.InfoContextf(ctx, "Tracing project %s, dataset %s via %s", cfg.ProjectName, cfg.DatasetName, cfg.Upload.Backend)

	client := &http.Client{Transport: tracer.Transport(nil), Timeout: 10 * time.Second}
	agent := newAgent(tracer, client, dc.PingURL)
	for i := range dc.Rounds {
		if ctx.Err() != nil {
			break
		}
		answer, err := agent(ctx, fmt.Sprintf("question %d", i+1))
		if err != nil {
			clog.WarnContextf(ctx, "agent round %d failed: %v", i+1, err)
			continue
		}
		clog.InfoContextf(ctx, "agent round %d: %s", i+1, answer)
	}

	drainCtx, drainCancel := context.WithTimeout(context.WithoutCancel(ctx), dc.DrainTime)
	defer drainCancel()
	if err := tracer.Shutdown(drainCtx); err != nil {
		clog.ErrorContextf(ctx, "shutting down tracer: %v", err)
	}
	if err := closeSubmitter(drainCtx); err != nil {
		clog.ErrorContextf(ctx, "draining uploads: %v", err)
	}
}

func serveMetrics(ctx context.Context, port int) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.WithoutCancel(ctx))
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		clog.ErrorContextf(ctx, "serving metrics: %v", err)
	}
}

// newSubmitter builds the submitter of the configured backend and a function
// draining it.
func newSubmitter(ctx context.Context, cfg *config.Config) (upload.Submitter, func(context.Context) error, error) {
	var transport upload.Transport
	cleanup := func(context.Context) error { return nil }

	switch cfg.Upload.Backend {
	case config.BackendNATS:
		nc, err := natsupload.Dial(cfg.Upload.NATS)
		if err != nil {
			return nil, nil, err
		}
		sub, err := natsupload.New(nc, cfg.Upload.NATS.Subject)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		return sub, func(context.Context) error { return nc.Drain() }, nil

	case config.BackendHTTP:
		transport = httpupload.New(ctx, cfg.Upload.HTTP, nil)

	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("creating storage client: %w", err)
		}
		u, err := gcsupload.New(client, cfg.Upload.GCS)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		transport = u
		cleanup = func(context.Context) error { return client.Close() }

	case config.BackendLog:
		transport = upload.TransportFunc(func(ctx context.Context, req upload.Request) error {
			doc, err := report.Load(req.TraceFilePath)
			if err != nil {
				return retry.Permanent(err)
			}
			clog.FromContext(ctx).With("trace_file", req.TraceFilePath, "code_zip", req.CodeZipPath).
				Info("Upload skipped, log backend")
			return report.Table(os.Stderr, doc)
		})

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Upload.Backend)
	}

	q, err := upload.NewQueue(transport,
		upload.WithWorkers(cfg.Upload.Workers),
		upload.WithCapacity(cfg.Upload.Capacity),
		upload.WithRetry(cfg.Upload.Retry),
	)
	if err != nil {
		_ = cleanup(ctx)
		return nil, nil, err
	}
	return q, func(ctx context.Context) error {
		return errors.Join(q.Close(ctx), cleanup(ctx))
	}, nil
}
