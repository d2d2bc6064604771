/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package gcsupload delivers traces to a Google Cloud Storage bucket.
//
// Objects are laid out per project and dataset:
//
//	<prefix>/<project>/<dataset>/traces/<trace file name>
//	<prefix>/<project>/code/<hash>.zip
//
// Source archives are content addressed and written once.
package gcsupload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"chainguard.dev/catalyst/agents/upload"
	"chainguard.dev/catalyst/agents/upload/retry"
	"cloud.google.com/go/storage"
	"github.com/chainguard-dev/clog"
)

// Config configures the GCS uploader.
type Config struct {
	Bucket string `env:"BUCKET"`
	Prefix string `env:"PREFIX,default=traces"`
}

// Uploader is an upload.Transport writing objects to a bucket.
type Uploader struct {
	bucket *storage.BucketHandle
	prefix string
}

var _ upload.Transport = (*Uploader)(nil)

// New creates an uploader writing to cfg.Bucket with client.
func New(client *storage.Client, cfg Config) (*Uploader, error) {
	if client == nil {
		return nil, errors.New("storage client cannot be nil")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	return &Uploader{
		bucket: client.Bucket(cfg.Bucket),
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Upload implements upload.Transport.
func (u *Uploader) Upload(ctx context.Context, req upload.Request) error {
	log := clog.FromContext(ctx).With("project", req.ProjectName, "dataset", req.DatasetName)

	if req.CodeZipPath != "" && req.HashID != "" {
		name := CodeObject(u.prefix, req)
		_, err := u.bucket.Object(name).Attrs(ctx)
		switch {
		case err == nil:
			log.Debug("Source archive already uploaded", "object", name)
		case errors.Is(err, storage.ErrObjectNotExist):
			if err := u.put(ctx, name, req.CodeZipPath, "application/zip", map[string]string{"hash_id": req.HashID}); err != nil {
				return err
			}
		default:
			return fmt.Errorf("checking %s: %w", name, err)
		}
	}

	name := TraceObject(u.prefix, req)
	if err := u.put(ctx, name, req.TraceFilePath, "application/json", ObjectMetadata(req)); err != nil {
		return err
	}
	log.Info("Trace uploaded", "object", name)
	return nil
}

func (u *Uploader) put(ctx context.Context, name, file, contentType string, meta map[string]string) error {
	f, err := os.Open(file)
	if err != nil {
		return retry.Permanent(fmt.Errorf("opening %s: %w", file, err))
	}
	defer f.Close()

	w := u.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = meta
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", name, err)
	}
	return nil
}

// TraceObject names the object a trace file is written to.
func TraceObject(prefix string, req upload.Request) string {
	return path.Join(prefix, segment(req.ProjectName), segment(req.DatasetName), "traces", filepath.Base(req.TraceFilePath))
}

// CodeObject names the object the source archive of req is written to.
func CodeObject(prefix string, req upload.Request) string {
	return path.Join(prefix, segment(req.ProjectName), "code", req.HashID+".zip")
}

// ObjectMetadata is the custom metadata attached to a trace object.
func ObjectMetadata(req upload.Request) map[string]string {
	meta := map[string]string{
		"hash_id":      req.HashID,
		"project_name": req.ProjectName,
		"dataset_name": req.DatasetName,
	}
	if req.ProjectID != "" {
		meta["project_id"] = req.ProjectID
	}
	for k, v := range req.UserDetails {
		meta["user_"+k] = v
	}
	return meta
}

// segment keeps user supplied names from escaping their directory.
func segment(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
