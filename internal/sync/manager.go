// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hangarbay/fleetindex/internal/config"
	"github.com/hangarbay/fleetindex/internal/logging"
	"github.com/hangarbay/fleetindex/internal/metrics"
	"github.com/hangarbay/fleetindex/internal/models"
	"github.com/hangarbay/fleetindex/internal/store"
)

// ErrSyncInProgress is returned when a run is requested while another
// run holds the lock. Runs are strictly serialized: concurrent partial
// batches would corrupt delta-timestamp comparisons.
var ErrSyncInProgress = errors.New("sync already in progress")

// Fetcher fetches the full upstream catalog. Implemented by FleetClient
// and CircuitBreakerClient, and by mocks in tests.
type Fetcher interface {
	FetchAllRecords(ctx context.Context) (*FetchResult, error)
}

// Store is the slice of the document store the orchestrator needs.
type Store interface {
	UpsertShips(ctx context.Context, ships []models.Ship) (*store.UpsertResult, error)
	GetShipCount(ctx context.Context) (int, error)
	GetShipTimestamps(ctx context.Context) (map[string]string, error)
	AppendAudit(ctx context.Context, audit *models.SyncAudit) error
	LatestAudit(ctx context.Context) (*models.SyncAudit, error)
}

// Manager orchestrates sync runs: fetch, sanity check, delta filter,
// validate, transform, upsert, audit. One run at a time; the audit
// record is written unconditionally, including on early-abort paths.
type Manager struct {
	store   Store
	fetcher Fetcher
	cfg     *config.SyncConfig

	syncMu  sync.Mutex
	running atomic.Bool
}

// NewManager creates a sync orchestrator.
func NewManager(st Store, fetcher Fetcher, cfg *config.SyncConfig) *Manager {
	return &Manager{
		store:   st,
		fetcher: fetcher,
		cfg:     cfg,
	}
}

// IsRunning reports whether a sync run is currently executing.
func (m *Manager) IsRunning() bool {
	return m.running.Load()
}

// RunSync executes one complete sync run and returns its audit record.
// Returns ErrSyncInProgress when another run holds the lock; every other
// outcome, including aborted runs, produces an audit record.
func (m *Manager) RunSync(ctx context.Context) (*models.SyncAudit, error) {
	if !m.syncMu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer m.syncMu.Unlock()

	m.running.Store(true)
	defer m.running.Store(false)

	started := time.Now().UTC()
	audit := &models.SyncAudit{
		ID:        uuid.NewString(),
		StartedAt: started,
	}

	// Previous run state seeds the version counter and the sanity check.
	prevCount := -1
	audit.SyncVersion = 1
	latest, err := m.store.LatestAudit(ctx)
	switch {
	case errors.Is(err, store.ErrAuditNotFound):
		// First run ever.
	case err != nil:
		return m.finish(ctx, audit, started, models.SyncStatusFailed,
			fmt.Sprintf("failed to read latest audit record: %v", err))
	default:
		audit.SyncVersion = latest.SyncVersion + 1
		prevCount = latest.TotalShips
	}

	logging.Info().Int64("sync_version", audit.SyncVersion).Msg("Starting catalog sync")

	fetched, err := m.fetcher.FetchAllRecords(ctx)
	if err != nil {
		audit.TotalShips = max(prevCount, 0)
		return m.finish(ctx, audit, started, models.SyncStatusFailed,
			fmt.Sprintf("fetch failed: %v", err))
	}
	audit.PagesFetched = fetched.PagesFetched
	audit.Errors = append(audit.Errors, fetched.Errors...)

	// An empty fetch must never be read as "the catalog is now empty".
	if len(fetched.Records) == 0 {
		audit.TotalShips = max(prevCount, 0)
		return m.finish(ctx, audit, started, models.SyncStatusFailed,
			"upstream returned no records, aborting")
	}

	// Sanity check against mass data loss from a broken upstream page.
	if prevCount > 0 && float64(len(fetched.Records)) < m.cfg.SanityThreshold*float64(prevCount) {
		audit.TotalShips = prevCount
		return m.finish(ctx, audit, started, models.SyncStatusFailed,
			fmt.Sprintf("fetched %d records, below %.0f%% of previous %d, aborting",
				len(fetched.Records), m.cfg.SanityThreshold*100, prevCount))
	}

	// Delta filter: records whose upstream timestamp is unchanged skip
	// validation and transform entirely.
	timestamps, err := m.store.GetShipTimestamps(ctx)
	if err != nil {
		audit.TotalShips = max(prevCount, 0)
		return m.finish(ctx, audit, started, models.SyncStatusFailed,
			fmt.Sprintf("failed to load timestamp projection: %v", err))
	}

	var deltaUnchanged int
	ships := make([]models.Ship, 0, len(fetched.Records))
	for i := range fetched.Records {
		raw := &fetched.Records[i]

		if stored, ok := timestamps[raw.ID]; ok && stored != "" && stored == raw.EffectiveUpdatedAt() {
			deltaUnchanged++
			continue
		}

		if err := ValidateShip(raw); err != nil {
			audit.SkippedShips++
			audit.Errors = append(audit.Errors, err.Error())
			continue
		}

		ships = append(ships, Transform(raw, audit.SyncVersion, started))
	}
	audit.UnchangedShips = deltaUnchanged

	if len(ships) > 0 {
		result, err := m.store.UpsertShips(ctx, ships)
		if err != nil {
			audit.TotalShips = max(prevCount, 0)
			return m.finish(ctx, audit, started, models.SyncStatusFailed,
				fmt.Sprintf("upsert failed: %v", err))
		}
		audit.NewShips = result.New
		audit.UpdatedShips = result.Updated
		audit.UnchangedShips += result.Unchanged
		audit.SkippedShips += result.Failed
		audit.Errors = append(audit.Errors, result.Errors...)
	}

	count, err := m.store.GetShipCount(ctx)
	if err != nil {
		audit.Errors = append(audit.Errors, fmt.Sprintf("failed to read final count: %v", err))
		count = max(prevCount, 0)
	}
	audit.TotalShips = count

	status := classify(audit)
	return m.finish(ctx, audit, started, status, "")
}

// classify derives the terminal status from the run's counters. Success
// means zero errors of any kind. Partial means errors happened but at
// least one record got through or was legitimately unchanged. Failed
// means nothing succeeded at all.
func classify(audit *models.SyncAudit) models.SyncStatus {
	processed := audit.NewShips + audit.UpdatedShips + audit.UnchangedShips
	switch {
	case !audit.HasErrors():
		return models.SyncStatusSuccess
	case processed > 0:
		return models.SyncStatusPartial
	default:
		return models.SyncStatusFailed
	}
}

// finish stamps the terminal fields, appends the audit record, records
// metrics, and logs the outcome. Audit append happens on every path.
func (m *Manager) finish(ctx context.Context, audit *models.SyncAudit, started time.Time, status models.SyncStatus, abortReason string) (*models.SyncAudit, error) {
	if abortReason != "" {
		audit.Errors = append(audit.Errors, abortReason)
	}
	audit.Status = status
	audit.DurationMS = time.Since(started).Milliseconds()

	// The audit log must be complete even for failed runs, so the append
	// uses a background context: a canceled run still gets its record.
	if err := m.store.AppendAudit(context.WithoutCancel(ctx), audit); err != nil {
		logging.Error().Err(err).Int64("sync_version", audit.SyncVersion).Msg("Failed to append audit record")
	}

	metrics.RecordSyncRun(string(status), time.Since(started), audit.PagesFetched)
	metrics.SyncShipsProcessed.WithLabelValues("new").Add(float64(audit.NewShips))
	metrics.SyncShipsProcessed.WithLabelValues("updated").Add(float64(audit.UpdatedShips))
	metrics.SyncShipsProcessed.WithLabelValues("unchanged").Add(float64(audit.UnchangedShips))
	metrics.SyncShipsProcessed.WithLabelValues("skipped").Add(float64(audit.SkippedShips))

	evt := logging.Info()
	if status == models.SyncStatusFailed {
		evt = logging.Error()
	}
	evt.
		Int64("sync_version", audit.SyncVersion).
		Str("status", string(status)).
		Int("total", audit.TotalShips).
		Int("new", audit.NewShips).
		Int("updated", audit.UpdatedShips).
		Int("unchanged", audit.UnchangedShips).
		Int("skipped", audit.SkippedShips).
		Int("pages", audit.PagesFetched).
		Int64("duration_ms", audit.DurationMS).
		Msg("Sync run finished")

	return audit, nil
}
