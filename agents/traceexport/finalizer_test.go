/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package traceexport

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"chainguard.dev/catalyst/agents/agenttrace"
	"chainguard.dev/catalyst/agents/tooltrace"
	"chainguard.dev/catalyst/agents/traceexport/sysinfo"
	"chainguard.dev/catalyst/agents/upload"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakeSystem struct{}

func (fakeSystem) SystemInfo(context.Context) sysinfo.SystemInfo {
	return sysinfo.SystemInfo{ID: "sys_test", OS: sysinfo.OSInfo{Name: "linux"}}
}

func (fakeSystem) Resources(context.Context) sysinfo.Resources {
	return sysinfo.Resources{CPU: sysinfo.CPU{Cores: 4}}
}

type fakeSubmitter struct {
	mu   sync.Mutex
	reqs []upload.Request
	err  error
}

func (s *fakeSubmitter) Submit(_ context.Context, req upload.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.reqs = append(s.reqs, req)
	return "task-1", nil
}

func testRouting() upload.Routing {
	return upload.Routing{
		ProjectName: "catalyst",
		ProjectID:   "42",
		DatasetName: "nightly",
		UserDetails: map[string]string{"owner": "agents"},
		BaseURL:     "https://traces.example.com",
	}
}

func newTestFinalizer(t *testing.T, sub upload.Submitter, opts ...FinalizerOption) (*Finalizer, string) {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(src, []byte("package main"), 0o600))

	opts = append([]FinalizerOption{
		WithOutputDir(dir),
		WithSourceFiles(src),
		WithSystemCollector(fakeSystem{}),
	}, opts...)
	f, err := NewFinalizer(sub, testRouting(), opts...)
	if err != nil {
		t.Fatalf("NewFinalizer() = %v", err)
	}
	return f, dir
}

func TestFinalizeWritesAndSubmits(t *testing.T) {
	sub := &fakeSubmitter{}
	f, dir := newTestFinalizer(t, sub)

	parent := "root"
	c := &agenttrace.Component{ID: "child", Name: "search", ParentID: &parent, Type: agenttrace.ComponentTool}
	fragments := []agenttrace.Fragment{
		agenttrace.FragmentFor("abc123", c),
		frag("abc123", "root", ""),
	}

	req, err := f.Finalize(context.Background(), "abc123", fragments)
	if err != nil {
		t.Fatalf("Finalize() = %v", err)
	}

	wantPath := filepath.Join(dir, "abc123.json")
	if req.TraceFilePath != wantPath {
		t.Errorf("TraceFilePath = %q, wanted = %q", req.TraceFilePath, wantPath)
	}
	if filepath.Dir(req.CodeZipPath) != dir || !strings.HasSuffix(req.CodeZipPath, req.HashID+".zip") {
		t.Errorf("CodeZipPath = %q, wanted <dir>/<hash>.zip", req.CodeZipPath)
	}
	if diff := cmp.Diff(testRouting(), req.Routing); diff != "" {
		t.Errorf("Routing mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, sub.reqs, 1)
	if diff := cmp.Diff(*req, sub.reqs[0]); diff != "" {
		t.Errorf("submitted request mismatch (-want +got):\n%s", diff)
	}

	raw, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("ReadFile() = %v", err)
	}
	if !strings.Contains(string(raw), "\n  \"id\": \"abc123\"") {
		t.Errorf("trace file is not 2-space indented:\n%s", raw)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("Unmarshal() = %v", err)
	}
	meta := doc["metadata"].(map[string]any)
	sys := meta["system_info"].(map[string]any)
	if sys["source_code"] != req.HashID {
		t.Errorf("source_code = %v, wanted = %v", sys["source_code"], req.HashID)
	}
	if _, ok := meta["resources"]; !ok {
		t.Error("metadata.resources missing")
	}
	if wf, ok := doc["workflow"].([]any); !ok || len(wf) != 0 {
		t.Errorf("workflow = %v, wanted []", doc["workflow"])
	}

	var tr Trace
	if err := json.Unmarshal(raw, &tr); err != nil {
		t.Fatalf("Unmarshal(Trace) = %v", err)
	}
	require.Len(t, tr.Spans, 1)
	require.Len(t, tr.Spans[0].Children, 1)
	if got := tr.Spans[0].Children[0].Component.Name; got != "search" {
		t.Errorf("child component = %q, wanted = %q", got, "search")
	}
}

func TestFinalizeLeavesNoTempFiles(t *testing.T) {
	f, dir := newTestFinalizer(t, &fakeSubmitter{})

	for _, id := range []string{"t1", "t2"} {
		if _, err := f.Finalize(context.Background(), id, []agenttrace.Fragment{frag(id, "root", "")}); err != nil {
			t.Fatalf("Finalize(%s) = %v", id, err)
		}
	}
	// Rewriting an existing trace replaces it in place.
	if _, err := f.Finalize(context.Background(), "t1", []agenttrace.Fragment{frag("t1", "root", "")}); err != nil {
		t.Fatalf("Finalize(t1) again = %v", err)
	}

	tmps, err := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	if err != nil {
		t.Fatalf("Glob() = %v", err)
	}
	if len(tmps) != 0 {
		t.Errorf("temp files = %v, wanted none", tmps)
	}
	for _, id := range []string{"t1", "t2"} {
		if _, err := os.Stat(filepath.Join(dir, id+".json")); err != nil {
			t.Errorf("Stat(%s.json) = %v", id, err)
		}
	}
}

func TestFinalizeErrors(t *testing.T) {
	packErr := errors.New("permission denied")
	submitErr := errors.New("queue full")

	tests := []struct {
		name    string
		traceID string
		sub     *fakeSubmitter
		opts    []FinalizerOption
		wantErr error
	}{{
		name:    "empty trace id",
		traceID: "",
		sub:     &fakeSubmitter{},
	}, {
		name:    "path in trace id",
		traceID: "../escape",
		sub:     &fakeSubmitter{},
	}, {
		name:    "packaging fails",
		traceID: "abc",
		sub:     &fakeSubmitter{},
		opts: []FinalizerOption{WithPackager(func(context.Context, []string, string) (string, string, error) {
			return "", "", packErr
		})},
		wantErr: packErr,
	}, {
		name:    "submit fails",
		traceID: "abc",
		sub:     &fakeSubmitter{err: submitErr},
		wantErr: submitErr,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := newTestFinalizer(t, tt.sub, tt.opts...)
			_, err := f.Finalize(context.Background(), tt.traceID, []agenttrace.Fragment{frag(tt.traceID, "root", "")})
			if err == nil {
				t.Fatal("Finalize() = nil error, wanted an error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Finalize() = %v, wanted wrapping %v", err, tt.wantErr)
			}
			if tt.traceID != "" && !strings.Contains(err.Error(), tt.traceID) {
				t.Errorf("Finalize() = %v, wanted the trace id in the error", err)
			}
		})
	}
}

func TestFinalizeUnencodableOutputs(t *testing.T) {
	tests := []struct {
		name   string
		output any
	}{
		{name: "nan", output: math.NaN()},
		{name: "func in slice", output: []any{func() {}}},
		{name: "struct keyed map", output: map[[2]int]string{{1, 2}: "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &fakeSubmitter{}
			f, _ := newTestFinalizer(t, sub)

			root := frag("t1", "root", "")
			root.Component = &agenttrace.Component{
				ID:   "root",
				Name: "root",
				Data: agenttrace.ComponentData{Output: tooltrace.Sanitize(tt.output)},
			}
			if _, err := f.Finalize(context.Background(), "t1", []agenttrace.Fragment{root}); err != nil {
				t.Fatalf("Finalize() = %v", err)
			}
			if len(sub.reqs) != 1 {
				t.Errorf("submitted = %d, wanted = 1", len(sub.reqs))
			}
		})
	}
}

func TestAggregatorWithFinalizer(t *testing.T) {
	ctx := context.Background()
	sub := &fakeSubmitter{}
	f, dir := newTestFinalizer(t, sub)
	agg := newTestAggregator(t, f, 0)

	agg.Add(ctx, frag("T1", "child", "root"))
	agg.Add(ctx, frag("T1", "root", ""))
	agg.Add(ctx, frag("T2", "orphan", "root"))
	if err := agg.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}

	for _, id := range []string{"T1", "T2"} {
		if _, err := os.Stat(filepath.Join(dir, id+".json")); err != nil {
			t.Errorf("Stat(%s.json) = %v", id, err)
		}
	}
	if got := len(sub.reqs); got != 2 {
		t.Errorf("submitted = %d, wanted = 2", got)
	}
}
