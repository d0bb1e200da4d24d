// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

// Package main is the fleetindex server entry point.
//
// Fleetindex mirrors a third-party ship catalog into a local BadgerDB
// document store and serves it over a read-only HTTP API. A scheduled
// sync pipeline keeps the mirror fresh; the audit log records every run.
//
// Startup order:
//
//  1. Configuration (Koanf v2: defaults, optional YAML file, env vars)
//  2. Logging (zerolog)
//  3. Document store (BadgerDB)
//  4. Upstream client (circuit breaker wrapped), sync manager
//  5. Scheduler and HTTP server under the suture supervision tree
//
// The server shuts down gracefully on SIGINT and SIGTERM: in-flight
// requests drain within a timeout, a running sync finishes its audit
// write, and the store closes last.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hangarbay/fleetindex/internal/api"
	"github.com/hangarbay/fleetindex/internal/config"
	"github.com/hangarbay/fleetindex/internal/logging"
	"github.com/hangarbay/fleetindex/internal/scheduler"
	"github.com/hangarbay/fleetindex/internal/store"
	"github.com/hangarbay/fleetindex/internal/supervisor"
	"github.com/hangarbay/fleetindex/internal/supervisor/services"
	"github.com/hangarbay/fleetindex/internal/sync"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("upstream", cfg.Upstream.BaseURL).
		Str("db_path", cfg.Database.Path).
		Str("schedule", cfg.Sync.Schedule).
		Bool("sync_enabled", cfg.Sync.Enabled).
		Msg("Configuration loaded")

	st, err := store.Open(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open document store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing document store")
		}
	}()

	client := sync.NewCircuitBreakerClient(&cfg.Upstream)
	manager := sync.NewManager(st, client, &cfg.Sync)

	sched, err := scheduler.New(manager, st, &cfg.Sync)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create sync scheduler")
	}

	handler := api.NewHandler(st, manager, &cfg.API)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(handler, &cfg.API),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSyncService(services.NewLifecycleService(sched, "sync-scheduler"))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting fleetindex")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain the channel so the tree has fully stopped before the store
	// closes underneath it.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Fleetindex stopped gracefully")
}
