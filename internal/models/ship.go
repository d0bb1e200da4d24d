// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

// Package models defines the data structures shared across fleetindex:
// the trusted internal ship document, the untrusted external record shape,
// sync audit records, and the API response envelopes.
package models

import "time"

// Manufacturer is the flattened manufacturer sub-record stored on a ship.
// Only name, code and slug survive normalization; everything else the
// upstream attaches to its manufacturer object is dropped.
type Manufacturer struct {
	Name string `json:"name"`
	Code string `json:"code"`
	Slug string `json:"slug"`
}

// ImageSet is the processed image-URL bundle for a ship. Fields may be
// empty when the upstream record carried no media.
type ImageSet struct {
	Small  string `json:"small,omitempty"`
	Medium string `json:"medium,omitempty"`
	Large  string `json:"large,omitempty"`
	Source string `json:"source,omitempty"`
}

// Ship is the normalized, trusted ship document stored in the local
// collection. ExternalID is the only stable identity: slug and name can
// change upstream and must never be used as the upsert key.
//
// Sync metadata semantics:
//   - SyncVersion reflects the run that last wrote the document, not
//     necessarily the most recent run (unchanged ships keep their version)
//   - ExternalUpdatedAt is the upstream timestamp used for delta filtering
//   - CreatedAt is set once on first insert and never overwritten
//   - UpdatedAt is bumped on every write
type Ship struct {
	ExternalID string `json:"external_id"`
	Slug       string `json:"slug"`
	Name       string `json:"name"`

	Manufacturer Manufacturer `json:"manufacturer"`

	Classification   string `json:"classification"`
	Size             string `json:"size"`
	ProductionStatus string `json:"production_status"`
	Focus            string `json:"focus"`
	Description      string `json:"description"`

	MinCrew          int     `json:"min_crew"`
	MaxCrew          int     `json:"max_crew"`
	CargoCapacity    float64 `json:"cargo_capacity"`
	Length           float64 `json:"length"`
	Beam             float64 `json:"beam"`
	Height           float64 `json:"height"`
	Mass             float64 `json:"mass"`
	SCMSpeed         float64 `json:"scm_speed"`
	AfterburnerSpeed float64 `json:"afterburner_speed"`
	PledgePrice      float64 `json:"pledge_price"`
	Price            float64 `json:"price"`
	OnSale           bool    `json:"on_sale"`
	StoreURL         string  `json:"store_url,omitempty"`

	Images ImageSet `json:"images"`

	SyncedAt          time.Time `json:"synced_at"`
	SyncVersion       int64     `json:"sync_version"`
	ExternalUpdatedAt string    `json:"external_updated_at"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ManufacturerCount is one row of the manufacturer aggregation: how many
// ships the catalog holds per manufacturer, sorted by name.
type ManufacturerCount struct {
	Name  string `json:"name"`
	Code  string `json:"code"`
	Slug  string `json:"slug"`
	Count int    `json:"count"`
}
