// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

package sync

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hangarbay/fleetindex/internal/models"
)

func validExternalShip() *models.ExternalShip {
	return &models.ExternalShip{
		ID:   "a0a0a0a0-0000-0000-0000-000000000001",
		Name: "Aurora MR",
		Slug: "aurora-mr",
		Manufacturer: &models.ExternalManufacturer{
			Name: "Roberts Space Industries",
			Code: "RSI",
			Slug: "roberts-space-industries",
		},
		UpdatedAt: "2026-05-01T00:00:00Z",
	}
}

func TestValidateShip(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.ExternalShip)
		wantErr bool
	}{
		{"valid minimal record", func(s *models.ExternalShip) {}, false},
		{"malformed uuid", func(s *models.ExternalShip) { s.ID = "not-a-uuid" }, true},
		{"empty id", func(s *models.ExternalShip) { s.ID = "" }, true},
		{"empty name", func(s *models.ExternalShip) { s.Name = "" }, true},
		{"empty slug", func(s *models.ExternalShip) { s.Slug = "" }, true},
		{"missing manufacturer", func(s *models.ExternalShip) { s.Manufacturer = nil }, true},
		{"manufacturer missing code", func(s *models.ExternalShip) { s.Manufacturer.Code = "" }, true},
		{"manufacturer missing name", func(s *models.ExternalShip) { s.Manufacturer.Name = "" }, true},
		{"manufacturer missing slug", func(s *models.ExternalShip) { s.Manufacturer.Slug = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validExternalShip()
			tt.mutate(raw)
			err := ValidateShip(raw)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateShip() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransformDefaults(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	ship := Transform(validExternalShip(), 7, now)

	if ship.ExternalID != "a0a0a0a0-0000-0000-0000-000000000001" {
		t.Errorf("ExternalID = %q", ship.ExternalID)
	}
	if ship.Manufacturer.Code != "RSI" {
		t.Errorf("Manufacturer.Code = %q, want RSI", ship.Manufacturer.Code)
	}
	if ship.SyncVersion != 7 {
		t.Errorf("SyncVersion = %d, want 7", ship.SyncVersion)
	}
	if !ship.SyncedAt.Equal(now) {
		t.Errorf("SyncedAt = %v, want %v", ship.SyncedAt, now)
	}
	if ship.ExternalUpdatedAt != "2026-05-01T00:00:00Z" {
		t.Errorf("ExternalUpdatedAt = %q", ship.ExternalUpdatedAt)
	}

	// Absent optionals default to zero values, never nil panics.
	if ship.CargoCapacity != 0 || ship.MinCrew != 0 || ship.OnSale || ship.Focus != "" {
		t.Errorf("optional defaults not zero: %+v", ship)
	}
}

func TestTransformPopulatedOptionals(t *testing.T) {
	raw := validExternalShip()
	cargo := 96.0
	crew := 4.0
	onSale := true
	focus := "Exploration"
	raw.Cargo = &cargo
	raw.MinCrew = &crew
	raw.OnSale = &onSale
	raw.Focus = &focus

	ship := Transform(raw, 1, time.Now())
	if ship.CargoCapacity != 96 {
		t.Errorf("CargoCapacity = %v, want 96", ship.CargoCapacity)
	}
	if ship.MinCrew != 4 {
		t.Errorf("MinCrew = %d, want 4", ship.MinCrew)
	}
	if !ship.OnSale {
		t.Error("OnSale = false, want true")
	}
	if ship.Focus != "Exploration" {
		t.Errorf("Focus = %q", ship.Focus)
	}
}

func TestTransformFallsBackToLastUpdatedAt(t *testing.T) {
	raw := validExternalShip()
	raw.UpdatedAt = ""
	raw.LastUpdatedAt = "2026-04-01T00:00:00Z"

	ship := Transform(raw, 1, time.Now())
	if ship.ExternalUpdatedAt != "2026-04-01T00:00:00Z" {
		t.Errorf("ExternalUpdatedAt = %q, want lastUpdatedAt value", ship.ExternalUpdatedAt)
	}
}

func TestResolveImages(t *testing.T) {
	tests := []struct {
		name       string
		storeImage string
		media      string
		want       models.ImageSet
	}{
		{
			name: "absent",
			want: models.ImageSet{},
		},
		{
			name:       "legacy flat string",
			storeImage: `"https://cdn.example.com/aurora.jpg"`,
			want:       models.ImageSet{Source: "https://cdn.example.com/aurora.jpg", Large: "https://cdn.example.com/aurora.jpg"},
		},
		{
			name:       "nested object",
			storeImage: `{"small": "s.jpg", "medium": "m.jpg", "large": "l.jpg", "source": "src.jpg"}`,
			want:       models.ImageSet{Small: "s.jpg", Medium: "m.jpg", Large: "l.jpg", Source: "src.jpg"},
		},
		{
			name:  "media fallback when storeImage absent",
			media: `{"source": "media.jpg"}`,
			want:  models.ImageSet{Source: "media.jpg"},
		},
		{
			name:       "storeImage wins over media",
			storeImage: `"store.jpg"`,
			media:      `{"source": "media.jpg"}`,
			want:       models.ImageSet{Source: "store.jpg", Large: "store.jpg"},
		},
		{
			name:       "null storeImage falls through",
			storeImage: `null`,
			media:      `"media.jpg"`,
			want:       models.ImageSet{Source: "media.jpg", Large: "media.jpg"},
		},
		{
			name:       "empty string yields nothing",
			storeImage: `""`,
			want:       models.ImageSet{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validExternalShip()
			if tt.storeImage != "" {
				raw.StoreImage = json.RawMessage(tt.storeImage)
			}
			if tt.media != "" {
				raw.Media = json.RawMessage(tt.media)
			}

			got := resolveImages(raw)
			if got != tt.want {
				t.Errorf("resolveImages() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
