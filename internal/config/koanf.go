// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/fleetindex/config.yaml",
	"/etc/fleetindex/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. These are
// layered first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			BaseURL:       "https://api.fleetyards.net/v1",
			PageSize:      200,
			MaxPages:      10,
			Timeout:       30 * time.Second,
			RetryAttempts: 3,
			RetryDelay:    time.Second,
			RateLimitWait: 5 * time.Second,
			PageDelay:     500 * time.Millisecond,
		},
		Sync: SyncConfig{
			Enabled:         true,
			Schedule:        "0 4 */2 * *", // every 2 days at 04:00 UTC
			CheckInterval:   time.Minute,
			CatchupWindow:   72 * time.Hour,
			SanityThreshold: 0.8,
		},
		Database: DatabaseConfig{
			Path:     "/data/fleetindex",
			InMemory: false,
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8460,
			Timeout: 30 * time.Second,
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
			MaxBatchIDs:     50,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML (if one exists)
//  3. Environment variables: override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// FLEET_API_URL -> upstream.base_url, SYNC_SCHEDULE -> sync.schedule
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when they arrive from the environment as plain strings.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		// Already a slice from the YAML layer
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names to config paths. Variables
// not listed here are ignored so unrelated process environment never
// leaks into the config tree.
var envMappings = map[string]string{
	"fleet_api_url":          "upstream.base_url",
	"fleet_api_page_size":    "upstream.page_size",
	"fleet_api_max_pages":    "upstream.max_pages",
	"fleet_api_timeout":      "upstream.timeout",
	"fleet_api_retries":      "upstream.retry_attempts",
	"fleet_api_retry_delay":  "upstream.retry_delay",
	"fleet_api_rate_wait":    "upstream.rate_limit_wait",
	"fleet_api_page_delay":   "upstream.page_delay",
	"sync_enabled":           "sync.enabled",
	"sync_schedule":          "sync.schedule",
	"sync_check_interval":    "sync.check_interval",
	"sync_catchup_window":    "sync.catchup_window",
	"sync_sanity_threshold":  "sync.sanity_threshold",
	"database_path":          "database.path",
	"database_in_memory":     "database.in_memory",
	"http_host":              "server.host",
	"http_port":              "server.port",
	"http_timeout":           "server.timeout",
	"api_default_page_size":  "api.default_page_size",
	"api_max_page_size":      "api.max_page_size",
	"api_max_batch_ids":      "api.max_batch_ids",
	"api_rate_limit_reqs":    "api.rate_limit_reqs",
	"api_rate_limit_window":  "api.rate_limit_window",
	"api_cors_origins":       "api.cors_origins",
	"log_level":              "logging.level",
	"log_format":             "logging.format",
	"log_caller":             "logging.caller",
}

// envTransformFunc maps environment variable names to koanf paths.
// Unknown variables map to "" and are dropped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
