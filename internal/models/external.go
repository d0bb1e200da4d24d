// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

package models

import "encoding/json"

// ExternalShip is one untrusted catalog entry as returned by the upstream
// API. The schema is a floor, not a ceiling: only the validate-tagged
// fields are required, everything else is optional with explicit defaults,
// and unknown fields on the wire are ignored so upstream additions never
// break ingestion.
//
// NOTE: decoded with encoding/json rather than go-json. The upstream
// catalog response can exceed several hundred records per page and go-json
// has misparsed large third-party payloads before; the stdlib decoder is
// the conservative choice at this trust boundary.
type ExternalShip struct {
	ID           string                `json:"id" validate:"required,uuid"`
	Name         string                `json:"name" validate:"required"`
	Slug         string                `json:"slug" validate:"required"`
	Manufacturer *ExternalManufacturer `json:"manufacturer" validate:"required"`

	Classification   string  `json:"classification"`
	Size             string  `json:"size"`
	ProductionStatus string  `json:"productionStatus"`
	Focus            *string `json:"focus"`
	Description      *string `json:"description"`

	MinCrew          *float64 `json:"minCrew"`
	MaxCrew          *float64 `json:"maxCrew"`
	Cargo            *float64 `json:"cargo"`
	Length           *float64 `json:"length"`
	Beam             *float64 `json:"beam"`
	Height           *float64 `json:"height"`
	Mass             *float64 `json:"mass"`
	SCMSpeed         *float64 `json:"scmSpeed"`
	AfterburnerSpeed *float64 `json:"afterburnerSpeed"`
	PledgePrice      *float64 `json:"pledgePrice"`
	Price            *float64 `json:"price"`
	OnSale           *bool    `json:"onSale"`
	StoreURL         *string  `json:"storeUrl"`

	// StoreImage has shipped in two layouts over the API's lifetime:
	// a legacy flat URL string and a newer object with per-size URLs.
	// Kept raw here; the transform resolves whichever is present.
	StoreImage json.RawMessage `json:"storeImage"`
	Media      json.RawMessage `json:"media"`

	UpdatedAt     string `json:"updatedAt"`
	LastUpdatedAt string `json:"lastUpdatedAt"`
}

// ExternalManufacturer is the untrusted manufacturer sub-object. All three
// fields are part of the required minimum.
type ExternalManufacturer struct {
	Name string `json:"name" validate:"required"`
	Code string `json:"code" validate:"required"`
	Slug string `json:"slug" validate:"required"`
}

// EffectiveUpdatedAt returns the upstream change timestamp used for delta
// comparison: updatedAt when present, lastUpdatedAt otherwise.
func (s *ExternalShip) EffectiveUpdatedAt() string {
	if s.UpdatedAt != "" {
		return s.UpdatedAt
	}
	return s.LastUpdatedAt
}
