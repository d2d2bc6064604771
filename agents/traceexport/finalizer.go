/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package traceexport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"chainguard.dev/catalyst/agents/agenttrace"
	"chainguard.dev/catalyst/agents/traceexport/sourcezip"
	"chainguard.dev/catalyst/agents/traceexport/sysinfo"
	"chainguard.dev/catalyst/agents/upload"
	"github.com/chainguard-dev/clog"
)

// SystemCollector describes the host a trace was recorded on.
type SystemCollector interface {
	SystemInfo(ctx context.Context) sysinfo.SystemInfo
	Resources(ctx context.Context) sysinfo.Resources
}

// Packager archives source files and returns the archive's content hash and path.
type Packager func(ctx context.Context, files []string, outputDir string) (hash, archivePath string, err error)

// Finalizer writes the canonical document of a trace and submits it for upload.
type Finalizer struct {
	dir       string
	files     []string
	routing   upload.Routing
	system    SystemCollector
	pack      Packager
	submitter upload.Submitter
}

var _ TraceHandler = (*Finalizer)(nil)

// FinalizerOption configures a Finalizer.
type FinalizerOption func(*Finalizer) error

// WithOutputDir sets where trace documents and archives are written.
// It defaults to the system temporary directory.
func WithOutputDir(dir string) FinalizerOption {
	return func(f *Finalizer) error {
		if dir == "" {
			return errors.New("output dir cannot be empty")
		}
		f.dir = dir
		return nil
	}
}

// WithSourceFiles sets the source files packaged with every trace.
func WithSourceFiles(files ...string) FinalizerOption {
	return func(f *Finalizer) error {
		f.files = append(f.files, files...)
		return nil
	}
}

// WithSystemCollector overrides how host information is gathered.
func WithSystemCollector(c SystemCollector) FinalizerOption {
	return func(f *Finalizer) error {
		if c == nil {
			return errors.New("system collector cannot be nil")
		}
		f.system = c
		return nil
	}
}

// WithPackager overrides how source files are archived.
func WithPackager(p Packager) FinalizerOption {
	return func(f *Finalizer) error {
		if p == nil {
			return errors.New("packager cannot be nil")
		}
		f.pack = p
		return nil
	}
}

// NewFinalizer creates a finalizer submitting traces routed to routing.
func NewFinalizer(submitter upload.Submitter, routing upload.Routing, opts ...FinalizerOption) (*Finalizer, error) {
	if submitter == nil {
		return nil, errors.New("submitter cannot be nil")
	}
	f := &Finalizer{
		dir:       os.TempDir(),
		routing:   routing,
		system:    sysinfo.New(routing.DatasetName),
		pack:      sourcezip.Package,
		submitter: submitter,
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	return f, nil
}

// Finalize implements TraceHandler. It converts the fragments, packages the
// source files, writes <dir>/<trace id>.json and submits the upload. Submit
// only hands the request over; delivery is up to the submitter.
func (f *Finalizer) Finalize(ctx context.Context, traceID string, fragments []agenttrace.Fragment) (*upload.Request, error) {
	if err := validTraceID(traceID); err != nil {
		return nil, err
	}

	trace := Convert(traceID, f.routing.ProjectName, fragments)

	hash, archive, err := f.pack(ctx, f.files, f.dir)
	if err != nil {
		return nil, fmt.Errorf("packaging source for trace %s: %w", traceID, err)
	}
	trace.Metadata.SystemInfo = f.system.SystemInfo(ctx)
	trace.Metadata.SystemInfo.SourceCode = hash
	trace.Metadata.Resources = f.system.Resources(ctx)

	path, err := f.write(traceID, trace)
	if err != nil {
		return nil, err
	}

	req := upload.Request{
		TraceFilePath: path,
		HashID:        hash,
		CodeZipPath:   archive,
		Routing:       f.routing,
	}
	req = req.Clone()

	taskID, err := f.submitter.Submit(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submitting trace %s: %w", traceID, err)
	}
	clog.FromContext(ctx).With("trace_id", traceID, "task_id", taskID).Info("Submitted upload task")
	return &req, nil
}

func (f *Finalizer) write(traceID string, trace *Trace) (string, error) {
	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding trace %s: %w", traceID, err)
	}
	path := filepath.Join(f.dir, traceID+".json")

	// Readers of the output directory never see a partial document.
	tmp, err := os.CreateTemp(f.dir, "."+traceID+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file for trace %s: %w", traceID, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("writing trace %s: %w", traceID, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing trace %s: %w", traceID, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("moving trace %s into place: %w", traceID, err)
	}
	return path, nil
}

// validTraceID rejects ids that cannot name a file in the output directory.
func validTraceID(id string) error {
	switch {
	case id == "":
		return errors.New("trace id is empty")
	case id == "." || id == "..", strings.ContainsAny(id, `/\`+"\x00"):
		return fmt.Errorf("trace id %q is not a valid file name", id)
	}
	return nil
}
