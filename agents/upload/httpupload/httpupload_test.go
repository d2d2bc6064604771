/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package httpupload

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"chainguard.dev/catalyst/agents/upload"
	"chainguard.dev/catalyst/agents/upload/retry"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func testRequest(t *testing.T, baseURL string) upload.Request {
	t.Helper()
	dir := t.TempDir()
	return upload.Request{
		TraceFilePath: writeFile(t, dir, "trace-1.json", `{"id":"trace-1"}`),
		HashID:        "deadbeef",
		CodeZipPath:   writeFile(t, dir, "deadbeef.zip", "PK"),
		Routing: upload.Routing{
			ProjectName: "catalyst",
			DatasetName: "nightly",
			UserDetails: map[string]string{"owner": "agents"},
			BaseURL:     baseURL,
		},
	}
}

func testConfig() Config {
	return Config{Token: "s3cret", Timeout: 5 * time.Second, RetryMax: 1}
}

func TestUploadMultipart(t *testing.T) {
	type received struct {
		path, auth  string
		meta        metadata
		trace, code string
	}
	got := make(chan received, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var rc received
		rc.path = r.URL.Path
		rc.auth = r.Header.Get("Authorization")
		if err := json.Unmarshal([]byte(r.FormValue("metadata")), &rc.meta); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for field, dst := range map[string]*string{"trace": &rc.trace, "code": &rc.code} {
			f, _, err := r.FormFile(field)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			b, _ := io.ReadAll(f)
			f.Close()
			*dst = string(b)
		}
		got <- rc
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	u := New(context.Background(), testConfig(), nil)
	if err := u.Upload(context.Background(), testRequest(t, srv.URL)); err != nil {
		t.Fatalf("Upload() = %v", err)
	}

	rc := <-got
	if rc.path != DefaultPath {
		t.Errorf("path = %q, wanted = %q", rc.path, DefaultPath)
	}
	if rc.auth != "Bearer s3cret" {
		t.Errorf("Authorization = %q, wanted = %q", rc.auth, "Bearer s3cret")
	}
	wantMeta := metadata{
		HashID:      "deadbeef",
		ProjectName: "catalyst",
		DatasetName: "nightly",
		UserDetails: map[string]string{"owner": "agents"},
	}
	if diff := cmp.Diff(wantMeta, rc.meta); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
	if rc.trace != `{"id":"trace-1"}` {
		t.Errorf("trace = %q, wanted = %q", rc.trace, `{"id":"trace-1"}`)
	}
	if rc.code != "PK" {
		t.Errorf("code = %q, wanted = %q", rc.code, "PK")
	}
}

func TestUploadStatusClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantPermanent bool
		wantAttempts  int32
	}{{
		name:          "bad request is permanent",
		status:        http.StatusBadRequest,
		wantPermanent: true,
		wantAttempts:  1,
	}, {
		name:          "server error is transient",
		status:        http.StatusBadGateway,
		wantPermanent: false,
		wantAttempts:  2,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				attempts.Add(1)
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			err := New(context.Background(), testConfig(), nil).Upload(context.Background(), testRequest(t, srv.URL))
			if err == nil {
				t.Fatal("Upload() = nil, wanted an error")
			}
			if got := retry.IsPermanent(err); got != tt.wantPermanent {
				t.Errorf("IsPermanent(%v) = %v, wanted = %v", err, got, tt.wantPermanent)
			}
			if got := attempts.Load(); got != tt.wantAttempts {
				t.Errorf("attempts = %d, wanted = %d", got, tt.wantAttempts)
			}
		})
	}
}

func TestUploadMissingTraceFile(t *testing.T) {
	req := testRequest(t, "http://127.0.0.1:1")
	req.TraceFilePath = filepath.Join(t.TempDir(), "missing.json")

	err := New(context.Background(), testConfig(), nil).Upload(context.Background(), req)
	if !retry.IsPermanent(err) {
		t.Errorf("Upload() = %v, wanted a permanent error", err)
	}
}

func TestUploadRequiresBaseURL(t *testing.T) {
	req := testRequest(t, "")
	if err := New(context.Background(), testConfig(), nil).Upload(context.Background(), req); !retry.IsPermanent(err) {
		t.Errorf("Upload() = %v, wanted a permanent error", err)
	}
}
