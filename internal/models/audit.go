// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

package models

import "time"

// SyncStatus is the terminal status of one sync run.
type SyncStatus string

const (
	// SyncStatusSuccess means every fetched record was validated and
	// written (or correctly skipped as unchanged) without a single error.
	SyncStatusSuccess SyncStatus = "success"

	// SyncStatusPartial means some pages or records failed but at least
	// one record got through or was legitimately unchanged.
	SyncStatusPartial SyncStatus = "partial"

	// SyncStatusFailed means nothing succeeded: empty fetch, sanity-check
	// abort, or a run where every record failed.
	SyncStatusFailed SyncStatus = "failed"
)

// SyncAudit is the append-only log entry for one orchestrator run. It is
// written unconditionally, including on early-abort paths, and never
// updated after insertion.
type SyncAudit struct {
	ID          string     `json:"id"`
	SyncVersion int64      `json:"sync_version"`
	StartedAt   time.Time  `json:"started_at"`
	DurationMS  int64      `json:"duration_ms"`
	Status      SyncStatus `json:"status"`

	// TotalShips is the catalog document count after the run. On aborted
	// runs it preserves the previous run's count: an empty or short fetch
	// must never be reported as "the catalog shrank".
	TotalShips     int `json:"total_ships"`
	NewShips       int `json:"new_ships"`
	UpdatedShips   int `json:"updated_ships"`
	UnchangedShips int `json:"unchanged_ships"`
	SkippedShips   int `json:"skipped_ships"`
	PagesFetched   int `json:"pages_fetched"`

	Errors []string `json:"errors,omitempty"`
}

// HasErrors reports whether the run collected any error strings.
func (a *SyncAudit) HasErrors() bool {
	return len(a.Errors) > 0
}
