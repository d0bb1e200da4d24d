// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

// Package config provides layered configuration for fleetindex using
// Koanf v2: struct defaults, then an optional YAML file, then environment
// variables. ENV > file > defaults.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the root configuration struct.
type Config struct {
	Upstream UpstreamConfig `koanf:"upstream"`
	Sync     SyncConfig     `koanf:"sync"`
	Database DatabaseConfig `koanf:"database"`
	Server   ServerConfig   `koanf:"server"`
	API      APIConfig      `koanf:"api"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// UpstreamConfig configures the external ship catalog API client.
type UpstreamConfig struct {
	// BaseURL is the upstream API root, e.g. "https://api.fleetyards.net/v1".
	BaseURL string `koanf:"base_url"`

	// PageSize is the per-page record count requested from the listing
	// endpoint.
	PageSize int `koanf:"page_size"`

	// MaxPages is the hard safety cap on pagination. A misbehaving
	// upstream or a cursor bug must not produce runaway fetch loops.
	MaxPages int `koanf:"max_pages"`

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `koanf:"timeout"`

	// RetryAttempts is the per-page retry budget.
	RetryAttempts int `koanf:"retry_attempts"`

	// RetryDelay is the linear backoff base: attempt N waits N*RetryDelay.
	RetryDelay time.Duration `koanf:"retry_delay"`

	// RateLimitWait is the default wait on HTTP 429 when the response
	// carries no Retry-After header.
	RateLimitWait time.Duration `koanf:"rate_limit_wait"`

	// PageDelay is the pause between successful page fetches, to stay
	// under undocumented upstream rate limits.
	PageDelay time.Duration `koanf:"page_delay"`
}

// SyncConfig configures the sync orchestrator and its schedule.
type SyncConfig struct {
	// Enabled controls whether the recurring scheduler runs at all.
	// Manual triggers via the API work regardless.
	Enabled bool `koanf:"enabled"`

	// Schedule is a standard 5-field cron expression for recurring runs.
	Schedule string `koanf:"schedule"`

	// CheckInterval is how often the scheduler polls for a due run.
	CheckInterval time.Duration `koanf:"check_interval"`

	// CatchupWindow is the staleness threshold for the startup catch-up
	// run. Wider than the schedule interval so ordinary jitter never
	// false-triggers, while genuine downtime is recovered.
	CatchupWindow time.Duration `koanf:"catchup_window"`

	// SanityThreshold aborts a run when the fetch count drops below this
	// fraction of the previous run's count.
	SanityThreshold float64 `koanf:"sanity_threshold"`
}

// DatabaseConfig configures the BadgerDB document store.
type DatabaseConfig struct {
	// Path is the on-disk Badger directory. Ignored when InMemory is set.
	Path string `koanf:"path"`

	// InMemory runs Badger without persistence. Test use only.
	InMemory bool `koanf:"in_memory"`
}

// ServerConfig configures the query-API HTTP server.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// APIConfig configures query-API behavior.
type APIConfig struct {
	DefaultPageSize int           `koanf:"default_page_size"`
	MaxPageSize     int           `koanf:"max_page_size"`
	MaxBatchIDs     int           `koanf:"max_batch_ids"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for values that would make the
// service misbehave at runtime. Called by LoadWithKoanf after all layers
// are merged.
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if u, err := url.Parse(c.Upstream.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream.base_url %q is not an absolute URL", c.Upstream.BaseURL)
	}
	if c.Upstream.PageSize < 1 || c.Upstream.PageSize > 500 {
		return fmt.Errorf("upstream.page_size must be 1-500, got %d", c.Upstream.PageSize)
	}
	if c.Upstream.MaxPages < 1 {
		return fmt.Errorf("upstream.max_pages must be positive, got %d", c.Upstream.MaxPages)
	}
	if c.Upstream.RetryAttempts < 1 {
		return fmt.Errorf("upstream.retry_attempts must be positive, got %d", c.Upstream.RetryAttempts)
	}
	if c.Sync.SanityThreshold <= 0 || c.Sync.SanityThreshold >= 1 {
		return fmt.Errorf("sync.sanity_threshold must be in (0,1), got %v", c.Sync.SanityThreshold)
	}
	if c.Sync.CatchupWindow <= 0 {
		return fmt.Errorf("sync.catchup_window must be positive")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.API.DefaultPageSize < 1 || c.API.DefaultPageSize > c.API.MaxPageSize {
		return fmt.Errorf("api.default_page_size must be 1-%d, got %d", c.API.MaxPageSize, c.API.DefaultPageSize)
	}
	if !c.Database.InMemory && c.Database.Path == "" {
		return fmt.Errorf("database.path is required unless database.in_memory is set")
	}
	return nil
}
