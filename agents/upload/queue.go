/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"chainguard.dev/catalyst/agents/upload/retry"
	"github.com/chainguard-dev/clog"
	"github.com/golang/groupcache/lru"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrQueueFull is returned by Submit when no buffer slot is free.
	ErrQueueFull = errors.New("upload queue is full")
	// ErrQueueClosed is returned by Submit after Close.
	ErrQueueClosed = errors.New("upload queue is closed")
)

// Status is the state of a submitted task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

type task struct {
	id     string
	req    Request
	logger *clog.Logger
	queued time.Time
}

// Queue is an in-process Submitter that delivers requests through a Transport
// on a fixed pool of workers.
type Queue struct {
	transport Transport
	retry     retry.Config
	workers   int
	capacity  int
	history   int

	tasks  chan task
	cancel context.CancelFunc
	g      *errgroup.Group

	mu       sync.Mutex
	closed   bool
	statuses *lru.Cache
}

var _ Submitter = (*Queue)(nil)

// QueueOption configures a Queue.
type QueueOption func(*Queue) error

// WithWorkers sets how many uploads run concurrently.
func WithWorkers(n int) QueueOption {
	return func(q *Queue) error {
		if n <= 0 {
			return errors.New("workers must be positive")
		}
		q.workers = n
		return nil
	}
}

// WithCapacity sets how many requests may wait for a worker.
func WithCapacity(n int) QueueOption {
	return func(q *Queue) error {
		if n < 0 {
			return errors.New("capacity cannot be negative")
		}
		q.capacity = n
		return nil
	}
}

// WithRetry sets the retry policy of each upload.
func WithRetry(cfg retry.Config) QueueOption {
	return func(q *Queue) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid retry config: %w", err)
		}
		q.retry = cfg
		return nil
	}
}

// WithStatusHistory sets how many task statuses are remembered.
func WithStatusHistory(n int) QueueOption {
	return func(q *Queue) error {
		if n <= 0 {
			return errors.New("status history must be positive")
		}
		q.history = n
		return nil
	}
}

// NewQueue starts a queue delivering through transport.
func NewQueue(transport Transport, opts ...QueueOption) (*Queue, error) {
	if transport == nil {
		return nil, errors.New("transport cannot be nil")
	}
	q := &Queue{
		transport: transport,
		retry:     retry.Default(),
		workers:   2,
		capacity:  64,
		history:   1024,
	}
	for _, opt := range opts {
		if err := opt(q); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}

	q.tasks = make(chan task, q.capacity)
	q.statuses = lru.New(q.history)

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.g, ctx = errgroup.WithContext(ctx)
	for range q.workers {
		q.g.Go(func() error {
			q.work(ctx)
			return nil
		})
	}
	return q, nil
}

// Submit queues req and returns its task id without waiting for delivery.
func (q *Queue) Submit(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("invalid upload request: %w", err)
	}

	t := task{
		id:     uuid.NewString(),
		req:    req.Clone(),
		logger: clog.FromContext(ctx),
		queued: time.Now(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return "", ErrQueueClosed
	}
	select {
	case q.tasks <- t:
	default:
		uploadTasks.WithLabelValues("rejected").Inc()
		return "", ErrQueueFull
	}
	q.statuses.Add(t.id, StatusPending)
	uploadQueueDepth.Inc()
	return t.id, nil
}

// Status reports the state of a task, if it is still remembered.
func (q *Queue) Status(taskID string) (Status, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	v, ok := q.statuses.Get(taskID)
	if !ok {
		return "", false
	}
	return v.(Status), true
}

// Close stops accepting requests and waits for queued ones to be delivered.
// If ctx ends first, in-flight uploads are cancelled and ctx's error returned.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = q.g.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}

func (q *Queue) setStatus(id string, s Status) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.statuses.Add(id, s)
}

func (q *Queue) work(ctx context.Context) {
	for t := range q.tasks {
		uploadQueueDepth.Dec()
		if ctx.Err() != nil {
			q.setStatus(t.id, StatusFailed)
			uploadTasks.WithLabelValues("cancelled").Inc()
			continue
		}
		q.deliver(clog.WithLogger(ctx, t.logger), t)
	}
}

func (q *Queue) deliver(ctx context.Context, t task) {
	log := clog.FromContext(ctx).With("task_id", t.id, "trace_file", t.req.TraceFilePath)
	q.setStatus(t.id, StatusRunning)

	start := time.Now()
	_, err := retry.Do(ctx, q.retry, "upload", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, q.transport.Upload(ctx, t.req)
	})
	uploadDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		q.setStatus(t.id, StatusFailed)
		uploadTasks.WithLabelValues("failed").Inc()
		log.Error("Upload failed", "error", err, "queued_for", start.Sub(t.queued))
		return
	}
	q.setStatus(t.id, StatusSucceeded)
	uploadTasks.WithLabelValues("succeeded").Inc()
	log.Info("Upload complete", "duration", time.Since(start))
}
