/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package natsupload

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"chainguard.dev/catalyst/agents/upload"
	"github.com/google/go-cmp/cmp"
	"github.com/nats-io/nats.go"
)

type fakePublisher struct {
	msgs []*nats.Msg
	err  error
}

func (f *fakePublisher) PublishMsg(m *nats.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, m)
	return nil
}

func testRequest() upload.Request {
	return upload.Request{
		TraceFilePath: "/tmp/t1.json",
		HashID:        "h1",
		CodeZipPath:   "/tmp/h1.zip",
		Routing: upload.Routing{
			ProjectName: "catalyst",
			DatasetName: "nightly",
			BaseURL:     "https://traces.example.com",
		},
	}
}

func TestSubmitPublishes(t *testing.T) {
	pub := &fakePublisher{}
	s, err := New(pub, "")
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	id, err := s.Submit(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Submit() = %v", err)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("published = %d, wanted = 1", len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.Subject != DefaultSubject {
		t.Errorf("Subject = %q, wanted = %q", msg.Subject, DefaultSubject)
	}
	if got := msg.Header.Get(nats.MsgIdHdr); got != id {
		t.Errorf("message id = %q, wanted = %q", got, id)
	}

	var task Task
	if err := json.Unmarshal(msg.Data, &task); err != nil {
		t.Fatalf("Unmarshal() = %v", err)
	}
	if task.TaskID != id {
		t.Errorf("TaskID = %q, wanted = %q", task.TaskID, id)
	}
	if diff := cmp.Diff(testRequest(), task.Request); diff != "" {
		t.Errorf("Request mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitPublishError(t *testing.T) {
	cause := errors.New("nats: connection closed")
	s, err := New(&fakePublisher{err: cause}, "custom.subject")
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	if _, err := s.Submit(context.Background(), testRequest()); !errors.Is(err, cause) {
		t.Errorf("Submit() = %v, wanted wrapping %v", err, cause)
	}
}

func TestSubmitInvalidRequest(t *testing.T) {
	pub := &fakePublisher{}
	s, err := New(pub, "")
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	if _, err := s.Submit(context.Background(), upload.Request{}); err == nil {
		t.Error("Submit() = nil error, wanted a validation error")
	}
	if len(pub.msgs) != 0 {
		t.Errorf("published = %d, wanted = 0", len(pub.msgs))
	}
}

func TestNewRequiresPublisher(t *testing.T) {
	if _, err := New(nil, ""); err == nil {
		t.Error("New(nil) = nil error, wanted an error")
	}
}
