/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package httpupload delivers traces to an HTTP collector as multipart uploads.
package httpupload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chainguard.dev/catalyst/agents/upload"
	"chainguard.dev/catalyst/agents/upload/retry"
	"github.com/chainguard-dev/clog"
	"github.com/hashicorp/go-retryablehttp"
)

// DefaultPath is where traces are posted, relative to the request's BaseURL.
const DefaultPath = "/v1/traces"

// Config configures the HTTP uploader.
type Config struct {
	// Token is sent as a bearer token when set.
	Token string `env:"TOKEN"`
	// Path is appended to each request's BaseURL.
	Path string `env:"PATH,default=/v1/traces"`
	// Timeout bounds one HTTP attempt.
	Timeout time.Duration `env:"TIMEOUT,default=30s"`
	// RetryMax is the number of in-client retries for connection errors and 5xx.
	RetryMax int `env:"RETRY_MAX,default=2"`
}

// Uploader is an upload.Transport posting to an HTTP collector.
type Uploader struct {
	client *retryablehttp.Client
	token  string
	path   string
}

var _ upload.Transport = (*Uploader)(nil)

// New creates an uploader. base may be nil to use a default transport.
func New(ctx context.Context, cfg Config, base http.RoundTripper) *Uploader {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = leveled{ctx: ctx}
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}
	if base != nil {
		client.HTTPClient.Transport = base
	}

	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	return &Uploader{client: client, token: cfg.Token, path: path}
}

// metadata is the JSON part describing the upload.
type metadata struct {
	HashID      string            `json:"hash_id"`
	ProjectName string            `json:"project_name"`
	ProjectID   string            `json:"project_id,omitempty"`
	DatasetName string            `json:"dataset_name"`
	UserDetails map[string]string `json:"user_details,omitempty"`
}

// Upload implements upload.Transport.
func (u *Uploader) Upload(ctx context.Context, req upload.Request) error {
	if req.BaseURL == "" {
		return retry.Permanent(errors.New("base url is required"))
	}
	endpoint, err := url.JoinPath(req.BaseURL, u.path)
	if err != nil {
		return retry.Permanent(fmt.Errorf("building endpoint: %w", err))
	}

	body, contentType, err := encode(req)
	if err != nil {
		return retry.Permanent(err)
	}

	hreq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return retry.Permanent(fmt.Errorf("creating request: %w", err))
	}
	hreq.Header.Set("Content-Type", contentType)
	if u.token != "" {
		hreq.Header.Set("Authorization", "Bearer "+u.token)
	}

	resp, err := u.client.Do(hreq)
	if err != nil {
		return fmt.Errorf("posting trace: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	err = fmt.Errorf("posting trace: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return err
	default:
		return retry.Permanent(err)
	}
}

// encode builds the multipart body: a metadata part, the trace file and,
// when present, the source archive.
func encode(req upload.Request) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	meta, err := json.Marshal(metadata{
		HashID:      req.HashID,
		ProjectName: req.ProjectName,
		ProjectID:   req.ProjectID,
		DatasetName: req.DatasetName,
		UserDetails: req.UserDetails,
	})
	if err != nil {
		return nil, "", fmt.Errorf("marshaling metadata: %w", err)
	}
	if err := mw.WriteField("metadata", string(meta)); err != nil {
		return nil, "", fmt.Errorf("writing metadata: %w", err)
	}
	if err := attach(mw, "trace", req.TraceFilePath); err != nil {
		return nil, "", err
	}
	if req.CodeZipPath != "" {
		if err := attach(mw, "code", req.CodeZipPath); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

func attach(mw *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", field, err)
	}
	defer f.Close()

	part, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("creating %s part: %w", field, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copying %s: %w", field, err)
	}
	return nil
}

// leveled routes retryablehttp logs to clog.
type leveled struct {
	ctx context.Context
}

var _ retryablehttp.LeveledLogger = leveled{}

func (l leveled) Error(msg string, kv ...any) { clog.FromContext(l.ctx).Error(msg, kv...) }
func (l leveled) Info(msg string, kv ...any)  { clog.FromContext(l.ctx).Debug(msg, kv...) }
func (l leveled) Debug(msg string, kv ...any) { clog.FromContext(l.ctx).Debug(msg, kv...) }
func (l leveled) Warn(msg string, kv ...any)  { clog.FromContext(l.ctx).Warn(msg, kv...) }
