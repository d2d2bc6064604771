/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chainguard.dev/catalyst/agents/tooltrace"
	"chainguard.dev/catalyst/agents/traceexport"
	"chainguard.dev/catalyst/agents/traceexport/report"
	"chainguard.dev/catalyst/config"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/require"
)

func TestAgentEndToEnd(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg, err := config.LoadFrom(ctx, envconfig.MapLookuper(map[string]string{
		"CATALYST_PROJECT_NAME":            "demo",
		"CATALYST_DATASET_NAME":            "runs",
		"CATALYST_OUTPUT_DIR":              dir,
		"CATALYST_UPLOAD_BACKEND":          config.BackendLog,
		"CATALYST_INSTRUMENT_NETWORK_CALLS": "true",
	}))
	require.NoError(t, err)

	submitter, drain, err := newSubmitter(ctx, cfg)
	require.NoError(t, err)
	fin, err := traceexport.NewFinalizer(submitter, cfg.Routing(), traceexport.WithOutputDir(cfg.OutputDir))
	require.NoError(t, err)
	agg, err := traceexport.NewAggregator(fin, cfg.Tombstones)
	require.NoError(t, err)
	tracer, err := tooltrace.New(agg, tooltrace.WithInstrumentation(cfg.Instrumentation()))
	require.NoError(t, err)
	tracer.Start()

	agent := newAgent(tracer, &http.Client{Transport: tracer.Transport(srv.Client().Transport)}, srv.URL)
	got, err := agent(ctx, "golang")
	require.NoError(t, err)
	if !strings.Contains(got, "result for golang") {
		t.Errorf("agent() = %q, wanted the search results", got)
	}

	require.NoError(t, tracer.Shutdown(ctx))
	require.NoError(t, drain(ctx))

	docs, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc, err := report.Load(docs[0])
	require.NoError(t, err)
	if doc.TraceName != "agent" {
		t.Errorf("TraceName = %q, wanted = %q", doc.TraceName, "agent")
	}
	// agent, toolbox, search, calculator and ping.
	if doc.Metadata.TotalSpans != 5 {
		t.Errorf("TotalSpans = %d, wanted = 5", doc.Metadata.TotalSpans)
	}
	if doc.Metadata.Errors != 0 {
		t.Errorf("Errors = %d, wanted = 0", doc.Metadata.Errors)
	}

	var network int
	doc.Walk(func(_ int, s *traceexport.Span) {
		if s.Component != nil {
			network += len(s.Component.NetworkCalls)
		}
	})
	if network != 1 {
		t.Errorf("network calls = %d, wanted = 1", network)
	}

	if _, err := os.Stat(filepath.Join(dir, doc.Metadata.SystemInfo.SourceCode+".zip")); err != nil {
		t.Errorf("source archive missing: %v", err)
	}
}

func TestNewSubmitterUnknownBackend(t *testing.T) {
	cfg := &config.Config{Upload: config.Upload{Backend: "carrier-pigeon"}}
	if _, _, err := newSubmitter(context.Background(), cfg); err == nil {
		t.Error("newSubmitter() = nil error, wanted an unknown backend error")
	}
}
