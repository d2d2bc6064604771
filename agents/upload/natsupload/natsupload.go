/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package natsupload hands upload requests to an out-of-process uploader over NATS.
package natsupload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chainguard.dev/catalyst/agents/upload"
	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// DefaultSubject is the subject requests are published on.
const DefaultSubject = "catalyst.uploads"

// Config configures the NATS connection and subject.
type Config struct {
	URL     string `env:"URL,default=nats://127.0.0.1:4222"`
	Subject string `env:"SUBJECT,default=catalyst.uploads"`
	Creds   string `env:"CREDS"`
}

// Publisher is the part of *nats.Conn the submitter needs.
type Publisher interface {
	PublishMsg(m *nats.Msg) error
}

// Task is the message body seen by the uploader.
type Task struct {
	TaskID      string         `json:"task_id"`
	SubmittedAt time.Time      `json:"submitted_at"`
	Request     upload.Request `json:"request"`
}

// Submitter publishes every request as a Task.
type Submitter struct {
	pub     Publisher
	subject string
}

var _ upload.Submitter = (*Submitter)(nil)

// New creates a submitter publishing on subject. An empty subject uses DefaultSubject.
func New(pub Publisher, subject string) (*Submitter, error) {
	if pub == nil {
		return nil, errors.New("publisher cannot be nil")
	}
	if subject == "" {
		subject = DefaultSubject
	}
	return &Submitter{pub: pub, subject: subject}, nil
}

// Submit implements upload.Submitter. The task id doubles as the message id so
// JetStream streams can de-duplicate redeliveries.
func (s *Submitter) Submit(ctx context.Context, req upload.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("invalid upload request: %w", err)
	}
	task := Task{
		TaskID:      uuid.NewString(),
		SubmittedAt: time.Now().UTC(),
		Request:     req,
	}
	data, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("marshaling task: %w", err)
	}

	msg := nats.NewMsg(s.subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, task.TaskID)
	if err := s.pub.PublishMsg(msg); err != nil {
		return "", fmt.Errorf("publishing to %s: %w", s.subject, err)
	}
	clog.FromContext(ctx).With("task_id", task.TaskID, "subject", s.subject).Debug("Upload request published")
	return task.TaskID, nil
}

// Dial connects to cfg.URL.
func Dial(cfg Config) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("catalyst-trace-exporter"),
		nats.Timeout(10 * time.Second),
		nats.MaxReconnects(5),
	}
	if cfg.Creds != "" {
		opts = append(opts, nats.UserCredentials(cfg.Creds))
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.URL, err)
	}
	return nc, nil
}
