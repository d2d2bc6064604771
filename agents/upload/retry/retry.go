/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package retry runs upload attempts with exponential backoff and jitter.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/chainguard-dev/clog"
)

// Config configures how failed uploads are retried.
type Config struct {
	// Attempts is the maximum number of retries after the first attempt.
	// 0 means do not retry at all.
	Attempts int `env:"ATTEMPTS,default=4"`
	// BaseBackoff is the backoff before the first retry. It doubles on every attempt.
	BaseBackoff time.Duration `env:"BASE_BACKOFF,default=500ms"`
	// MaxBackoff caps the backoff.
	MaxBackoff time.Duration `env:"MAX_BACKOFF,default=30s"`
	// MaxJitter is the maximum random jitter added to each backoff.
	MaxJitter time.Duration `env:"MAX_JITTER,default=250ms"`
}

// Validate checks that the retry configuration has valid values.
func (c Config) Validate() error {
	if c.Attempts < 0 {
		return errors.New("attempts cannot be negative")
	}
	if c.BaseBackoff < 0 {
		return errors.New("base backoff cannot be negative")
	}
	if c.MaxBackoff < c.BaseBackoff {
		return errors.New("max backoff cannot be lower than base backoff")
	}
	if c.MaxJitter < 0 {
		return errors.New("max jitter cannot be negative")
	}
	return nil
}

// Default returns the configuration used when none is given.
func Default() Config {
	return Config{
		Attempts:    4,
		BaseBackoff: 500 * time.Millisecond,
		MaxBackoff:  30 * time.Second,
		MaxJitter:   250 * time.Millisecond,
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or any error it wraps, was marked Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do runs fn until it succeeds, fails permanently, the retries are exhausted
// or ctx is done.
func Do[T any](ctx context.Context, cfg Config, operation string, fn func(context.Context) (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt <= cfg.Attempts; attempt++ {
		result, lastErr = fn(ctx)
		if lastErr == nil {
			return result, nil
		}
		if IsPermanent(lastErr) {
			return result, lastErr
		}
		if attempt >= cfg.Attempts {
			break
		}

		backoff := min(cfg.BaseBackoff<<attempt, cfg.MaxBackoff)
		var jitter time.Duration
		if cfg.MaxJitter > 0 {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(cfg.MaxJitter)))
			if err == nil {
				jitter = time.Duration(n.Int64())
			}
		}

		clog.FromContext(ctx).With("operation", operation).
			With("attempt", attempt+1).
			With("max_attempts", cfg.Attempts).
			With("backoff", backoff+jitter).
			With("error", lastErr.Error()).
			Warn("Upload attempt failed, retrying")

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(backoff + jitter):
		}
	}

	return result, fmt.Errorf("%s failed after %d retries: %w", operation, cfg.Attempts, lastErr)
}
