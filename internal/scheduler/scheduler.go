// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hangarbay/fleetindex/internal/config"
	"github.com/hangarbay/fleetindex/internal/logging"
	"github.com/hangarbay/fleetindex/internal/models"
	"github.com/hangarbay/fleetindex/internal/store"
	syncpkg "github.com/hangarbay/fleetindex/internal/sync"
)

// SyncRunner triggers a catalog sync run. Implemented by sync.Manager.
type SyncRunner interface {
	RunSync(ctx context.Context) (*models.SyncAudit, error)
}

// AuditReader reads the latest audit record, used for the startup
// catch-up probe.
type AuditReader interface {
	LatestAudit(ctx context.Context) (*models.SyncAudit, error)
}

// Scheduler fires catalog syncs on a cron schedule. On startup it also
// probes the audit log: when the last run is older than the catch-up
// window (or no run exists), it syncs immediately, independent of the
// recurring schedule. The window is deliberately wider than the default
// schedule interval so ordinary jitter never false-triggers while real
// downtime is recovered.
type Scheduler struct {
	runner SyncRunner
	audits AuditReader
	cfg    *config.SyncConfig
	sched  *Schedule

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a scheduler. The schedule expression is parsed eagerly so
// a bad configuration fails at startup, not at the first due tick.
func New(runner SyncRunner, audits AuditReader, cfg *config.SyncConfig) (*Scheduler, error) {
	sched, err := Parse(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", cfg.Schedule, err)
	}
	return &Scheduler{
		runner: runner,
		audits: audits,
		cfg:    cfg,
		sched:  sched,
	}, nil
}

// Start begins the scheduling loop in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	if !s.cfg.Enabled {
		logging.Info().Msg("Sync scheduler disabled, manual triggers only")
		go func() {
			defer close(s.doneCh)
			<-s.stopCh
		}()
		return nil
	}

	logging.Info().
		Str("schedule", s.cfg.Schedule).
		Dur("check_interval", s.cfg.CheckInterval).
		Dur("catchup_window", s.cfg.CatchupWindow).
		Msg("Starting sync scheduler")

	go s.run(ctx)
	return nil
}

// Stop stops the loop and waits for it to drain. A sync run in flight
// finishes; only the scheduling stops.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	logging.Info().Msg("Sync scheduler stopped")
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	if s.needsCatchup(ctx) {
		logging.Info().Msg("Last sync outside catch-up window, running now")
		s.execute(ctx)
	}

	next := s.sched.Next(time.Now().UTC())
	logging.Info().Time("next_run", next).Msg("Next scheduled sync")

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if time.Now().UTC().Before(next) {
				continue
			}
			s.execute(ctx)
			next = s.sched.Next(time.Now().UTC())
			logging.Debug().Time("next_run", next).Msg("Next scheduled sync")
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// needsCatchup reports whether the latest audit record is absent or
// older than the catch-up window.
func (s *Scheduler) needsCatchup(ctx context.Context) bool {
	latest, err := s.audits.LatestAudit(ctx)
	if errors.Is(err, store.ErrAuditNotFound) {
		return true
	}
	if err != nil {
		logging.Error().Err(err).Msg("Failed to read latest audit for catch-up probe")
		return false
	}
	return time.Since(latest.StartedAt) > s.cfg.CatchupWindow
}

func (s *Scheduler) execute(ctx context.Context) {
	audit, err := s.runner.RunSync(ctx)
	if errors.Is(err, syncpkg.ErrSyncInProgress) {
		logging.Warn().Msg("Scheduled sync skipped, another run in progress")
		return
	}
	if err != nil {
		logging.Error().Err(err).Msg("Scheduled sync failed to start")
		return
	}
	logging.Info().
		Str("status", string(audit.Status)).
		Int64("sync_version", audit.SyncVersion).
		Msg("Scheduled sync completed")
}
