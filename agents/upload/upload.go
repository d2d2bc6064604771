/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package upload

import (
	"context"
	"errors"
	"maps"
)

// Routing carries the destination of an uploaded trace.
type Routing struct {
	ProjectName string            `json:"project_name"`
	ProjectID   string            `json:"project_id"`
	DatasetName string            `json:"dataset_name"`
	UserDetails map[string]string `json:"user_details"`
	BaseURL     string            `json:"base_url"`
}

// Request describes one packaged trace ready to be uploaded. It is not
// modified once submitted.
type Request struct {
	TraceFilePath string `json:"trace_file_path"`
	HashID        string `json:"hash_id"`
	CodeZipPath   string `json:"code_zip_path"`
	Routing
}

// Validate checks that the request names the artifacts it refers to.
func (r Request) Validate() error {
	var errs []error
	if r.TraceFilePath == "" {
		errs = append(errs, errors.New("trace file path is required"))
	}
	if r.ProjectName == "" {
		errs = append(errs, errors.New("project name is required"))
	}
	if r.DatasetName == "" {
		errs = append(errs, errors.New("dataset name is required"))
	}
	return errors.Join(errs...)
}

// Clone returns a deep copy of r.
func (r Request) Clone() Request {
	r.UserDetails = maps.Clone(r.UserDetails)
	return r
}

// Submitter hands a request to an uploader. Submit returns once the request is
// accepted, not once it is delivered; delivery is at-least-once, best effort.
type Submitter interface {
	Submit(ctx context.Context, req Request) (taskID string, err error)
}

// Transport delivers a request to its destination.
type Transport interface {
	Upload(ctx context.Context, req Request) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req Request) error

// Upload implements Transport.
func (f TransportFunc) Upload(ctx context.Context, req Request) error {
	return f(ctx, req)
}
