/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package config loads the trace export pipeline configuration from the
// environment. Every variable is prefixed with CATALYST_.
package config

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"chainguard.dev/catalyst/agents/tooltrace"
	"chainguard.dev/catalyst/agents/upload"
	"chainguard.dev/catalyst/agents/upload/gcsupload"
	"chainguard.dev/catalyst/agents/upload/httpupload"
	"chainguard.dev/catalyst/agents/upload/natsupload"
	"chainguard.dev/catalyst/agents/upload/retry"
	"github.com/sethvargo/go-envconfig"
)

// Prefix is prepended to every variable name.
const Prefix = "CATALYST_"

// Upload backends.
const (
	BackendHTTP = "http"
	BackendGCS  = "gcs"
	BackendNATS = "nats"
	// BackendLog only logs requests; useful locally.
	BackendLog = "log"
)

// Config is the full pipeline configuration.
type Config struct {
	ProjectName string            `env:"PROJECT_NAME,required"`
	ProjectID   string            `env:"PROJECT_ID"`
	DatasetName string            `env:"DATASET_NAME,required"`
	BaseURL     string            `env:"BASE_URL"`
	UserDetails map[string]string `env:"USER_DETAILS"`

	// OutputDir holds trace documents and source archives. Empty means the
	// system temporary directory.
	OutputDir   string   `env:"OUTPUT_DIR"`
	SourceFiles []string `env:"SOURCE_FILES"`
	// Tombstones is how many finalized trace ids are remembered.
	Tombstones int `env:"TOMBSTONES,default=4096"`

	Instrument Instrument `env:", prefix=INSTRUMENT_"`
	Upload     Upload     `env:", prefix=UPLOAD_"`
}

// Instrument selects what the tool tracer records.
type Instrument struct {
	ToolCalls        bool `env:"TOOL_CALLS,default=true"`
	NetworkCalls     bool `env:"NETWORK_CALLS,default=false"`
	UserInteractions bool `env:"USER_INTERACTIONS,default=false"`
}

// Upload configures how traces leave the process.
type Upload struct {
	Backend  string `env:"BACKEND,default=http"`
	Workers  int    `env:"WORKERS,default=2"`
	Capacity int    `env:"CAPACITY,default=64"`

	Retry retry.Config      `env:", prefix=RETRY_"`
	HTTP  httpupload.Config `env:", prefix=HTTP_"`
	GCS   gcsupload.Config  `env:", prefix=GCS_"`
	NATS  natsupload.Config `env:", prefix=NATS_"`
}

// Load reads the configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads the configuration from l and validates it.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper(Prefix, l),
	}); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings that depend on each other.
func (c *Config) Validate() error {
	var errs []error
	if c.Tombstones <= 0 {
		errs = append(errs, errors.New("tombstones must be positive"))
	}
	if c.Upload.Workers <= 0 {
		errs = append(errs, errors.New("upload workers must be positive"))
	}
	if c.Upload.Capacity < 0 {
		errs = append(errs, errors.New("upload capacity cannot be negative"))
	}
	if err := c.Upload.Retry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("upload retry: %w", err))
	}

	switch c.Upload.Backend {
	case BackendHTTP:
		if c.BaseURL == "" {
			errs = append(errs, errors.New("base url is required for the http backend"))
		}
	case BackendGCS:
		if c.Upload.GCS.Bucket == "" {
			errs = append(errs, errors.New("gcs bucket is required for the gcs backend"))
		}
	case BackendNATS:
		if c.Upload.NATS.URL == "" {
			errs = append(errs, errors.New("nats url is required for the nats backend"))
		}
	case BackendLog:
	default:
		errs = append(errs, fmt.Errorf("unknown upload backend %q", c.Upload.Backend))
	}
	return errors.Join(errs...)
}

// Routing returns where traces are uploaded.
func (c *Config) Routing() upload.Routing {
	return upload.Routing{
		ProjectName: c.ProjectName,
		ProjectID:   c.ProjectID,
		DatasetName: c.DatasetName,
		UserDetails: maps.Clone(c.UserDetails),
		BaseURL:     c.BaseURL,
	}
}

// Instrumentation returns the initial tool tracer flags.
func (c *Config) Instrumentation() tooltrace.Instrumentation {
	return tooltrace.Instrumentation{
		ToolCalls:        c.Instrument.ToolCalls,
		NetworkCalls:     c.Instrument.NetworkCalls,
		UserInteractions: c.Instrument.UserInteractions,
	}
}
