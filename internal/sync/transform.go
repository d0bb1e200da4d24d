// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

package sync

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hangarbay/fleetindex/internal/metrics"
	"github.com/hangarbay/fleetindex/internal/models"
	"github.com/hangarbay/fleetindex/internal/validation"
)

// ValidateShip runs the trust-boundary schema check on one upstream
// record: well-formed UUID id, non-empty name and slug, and a complete
// manufacturer sub-object. Everything else is optional and defaulted by
// Transform. A failing record is skipped, never fatal to the run.
func ValidateShip(raw *models.ExternalShip) error {
	if err := validation.ValidateStruct(raw); err != nil {
		metrics.SyncValidationErrors.Inc()
		return fmt.Errorf("record %q: %w", raw.ID, err)
	}
	return nil
}

// Transform converts a validated upstream record into the internal ship
// document, stamping the run's sync version and the upstream change
// timestamp used for later delta comparison. Optional fields default to
// their zero values so a sparse record still yields a usable document.
func Transform(raw *models.ExternalShip, syncVersion int64, now time.Time) models.Ship {
	return models.Ship{
		ExternalID: raw.ID,
		Slug:       raw.Slug,
		Name:       raw.Name,

		Manufacturer: models.Manufacturer{
			Name: raw.Manufacturer.Name,
			Code: raw.Manufacturer.Code,
			Slug: raw.Manufacturer.Slug,
		},

		Classification:   raw.Classification,
		Size:             raw.Size,
		ProductionStatus: raw.ProductionStatus,
		Focus:            strOrEmpty(raw.Focus),
		Description:      strOrEmpty(raw.Description),

		MinCrew:          int(floatOrZero(raw.MinCrew)),
		MaxCrew:          int(floatOrZero(raw.MaxCrew)),
		CargoCapacity:    floatOrZero(raw.Cargo),
		Length:           floatOrZero(raw.Length),
		Beam:             floatOrZero(raw.Beam),
		Height:           floatOrZero(raw.Height),
		Mass:             floatOrZero(raw.Mass),
		SCMSpeed:         floatOrZero(raw.SCMSpeed),
		AfterburnerSpeed: floatOrZero(raw.AfterburnerSpeed),
		PledgePrice:      floatOrZero(raw.PledgePrice),
		Price:            floatOrZero(raw.Price),
		OnSale:           boolOrFalse(raw.OnSale),
		StoreURL:         strOrEmpty(raw.StoreURL),

		Images: resolveImages(raw),

		SyncedAt:          now,
		SyncVersion:       syncVersion,
		ExternalUpdatedAt: raw.EffectiveUpdatedAt(),
	}
}

// imageObject is the newer nested layout for upstream image fields.
type imageObject struct {
	Small  string `json:"small"`
	Medium string `json:"medium"`
	Large  string `json:"large"`
	Source string `json:"source"`
}

// resolveImages flattens whichever image layout the record carries.
// The upstream has emitted two over its lifetime: a legacy flat URL
// string, and a nested object with per-size URLs. storeImage wins over
// media when both are present.
func resolveImages(raw *models.ExternalShip) models.ImageSet {
	if set, ok := parseImageField(raw.StoreImage); ok {
		return set
	}
	if set, ok := parseImageField(raw.Media); ok {
		return set
	}
	return models.ImageSet{}
}

// parseImageField accepts either layout of one image field. A field
// carrying null, an empty string, or an unrecognized shape yields no
// image set rather than an error; images are never required.
func parseImageField(field json.RawMessage) (models.ImageSet, bool) {
	if len(field) == 0 {
		return models.ImageSet{}, false
	}

	var flat string
	if err := json.Unmarshal(field, &flat); err == nil {
		if flat == "" {
			return models.ImageSet{}, false
		}
		return models.ImageSet{Source: flat, Large: flat}, true
	}

	var obj imageObject
	if err := json.Unmarshal(field, &obj); err == nil {
		if obj.Small == "" && obj.Medium == "" && obj.Large == "" && obj.Source == "" {
			return models.ImageSet{}, false
		}
		return models.ImageSet{
			Small:  obj.Small,
			Medium: obj.Medium,
			Large:  obj.Large,
			Source: obj.Source,
		}, true
	}

	return models.ImageSet{}, false
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func boolOrFalse(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}
