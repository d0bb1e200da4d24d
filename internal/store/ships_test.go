// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hangarbay/fleetindex/internal/config"
	"github.com/hangarbay/fleetindex/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(&config.DatabaseConfig{InMemory: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func testShip(externalID, slug, name string) models.Ship {
	return models.Ship{
		ExternalID: externalID,
		Slug:       slug,
		Name:       name,
		Manufacturer: models.Manufacturer{
			Name: "Roberts Space Industries",
			Code: "RSI",
			Slug: "roberts-space-industries",
		},
		Size:              "medium",
		ProductionStatus:  "flight-ready",
		SyncVersion:       1,
		ExternalUpdatedAt: "2026-01-01T00:00:00Z",
	}
}

func testShips(n int) []models.Ship {
	ships := make([]models.Ship, 0, n)
	for i := 0; i < n; i++ {
		ships = append(ships, testShip(
			fmt.Sprintf("00000000-0000-0000-0000-%012d", i),
			fmt.Sprintf("ship-%d", i),
			fmt.Sprintf("Ship %d", i),
		))
	}
	return ships
}

func TestUpsertShipsOutcomes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ships := testShips(5)

	result, err := s.UpsertShips(ctx, ships)
	if err != nil {
		t.Fatalf("UpsertShips() error = %v", err)
	}
	if result.New != 5 || result.Updated != 0 || result.Unchanged != 0 {
		t.Errorf("first upsert = {new: %d, updated: %d, unchanged: %d}, want {5, 0, 0}",
			result.New, result.Updated, result.Unchanged)
	}

	// Identical payload: everything unchanged, nothing rewritten.
	result, err = s.UpsertShips(ctx, testShips(5))
	if err != nil {
		t.Fatalf("UpsertShips() replay error = %v", err)
	}
	if result.New != 0 || result.Updated != 0 || result.Unchanged != 5 {
		t.Errorf("replay upsert = {new: %d, updated: %d, unchanged: %d}, want {0, 0, 5}",
			result.New, result.Updated, result.Unchanged)
	}

	// Bump one upstream timestamp: exactly one update.
	changed := testShips(5)
	changed[2].ExternalUpdatedAt = "2026-02-01T00:00:00Z"
	changed[2].Name = "Ship 2 Mk II"

	result, err = s.UpsertShips(ctx, changed)
	if err != nil {
		t.Fatalf("UpsertShips() change error = %v", err)
	}
	if result.New != 0 || result.Updated != 1 || result.Unchanged != 4 {
		t.Errorf("changed upsert = {new: %d, updated: %d, unchanged: %d}, want {0, 1, 4}",
			result.New, result.Updated, result.Unchanged)
	}

	got, err := s.FindByExternalID(ctx, changed[2].ExternalID)
	if err != nil {
		t.Fatalf("FindByExternalID() error = %v", err)
	}
	if got.Name != "Ship 2 Mk II" {
		t.Errorf("updated ship name = %q, want %q", got.Name, "Ship 2 Mk II")
	}
}

func TestUpsertShipsPreservesCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ship := testShip("11111111-1111-1111-1111-111111111111", "aurora-mr", "Aurora MR")
	if _, err := s.UpsertShips(ctx, []models.Ship{ship}); err != nil {
		t.Fatalf("UpsertShips() error = %v", err)
	}

	first, err := s.FindByExternalID(ctx, ship.ExternalID)
	if err != nil {
		t.Fatalf("FindByExternalID() error = %v", err)
	}
	if first.CreatedAt.IsZero() {
		t.Fatal("CreatedAt not set on insert")
	}

	ship.ExternalUpdatedAt = "2026-03-01T00:00:00Z"
	ship.SyncVersion = 2
	if _, err := s.UpsertShips(ctx, []models.Ship{ship}); err != nil {
		t.Fatalf("UpsertShips() update error = %v", err)
	}

	second, err := s.FindByExternalID(ctx, ship.ExternalID)
	if err != nil {
		t.Fatalf("FindByExternalID() error = %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on update: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
	if second.SyncVersion != 2 {
		t.Errorf("SyncVersion = %d, want 2", second.SyncVersion)
	}
}

func TestUpsertShipsNeverDeletes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertShips(ctx, testShips(10)); err != nil {
		t.Fatalf("UpsertShips() error = %v", err)
	}

	// A later batch missing most ships must not remove them.
	if _, err := s.UpsertShips(ctx, testShips(3)); err != nil {
		t.Fatalf("UpsertShips() partial batch error = %v", err)
	}

	count, err := s.GetShipCount(ctx)
	if err != nil {
		t.Fatalf("GetShipCount() error = %v", err)
	}
	if count != 10 {
		t.Errorf("GetShipCount() = %d after partial batch, want 10", count)
	}
}

func TestUpsertShipsSlugChange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ship := testShip("22222222-2222-2222-2222-222222222222", "old-slug", "Cutlass Black")
	if _, err := s.UpsertShips(ctx, []models.Ship{ship}); err != nil {
		t.Fatalf("UpsertShips() error = %v", err)
	}

	ship.Slug = "cutlass-black"
	ship.ExternalUpdatedAt = "2026-04-01T00:00:00Z"
	if _, err := s.UpsertShips(ctx, []models.Ship{ship}); err != nil {
		t.Fatalf("UpsertShips() slug change error = %v", err)
	}

	if _, err := s.FindBySlug(ctx, "cutlass-black"); err != nil {
		t.Errorf("FindBySlug(new slug) error = %v", err)
	}
	if _, err := s.FindBySlug(ctx, "old-slug"); !errors.Is(err, ErrShipNotFound) {
		t.Errorf("FindBySlug(old slug) error = %v, want ErrShipNotFound", err)
	}
}

func TestFindByIDOrSlug(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ship := testShip("33333333-3333-3333-3333-333333333333", "carrack", "Carrack")
	if _, err := s.UpsertShips(ctx, []models.Ship{ship}); err != nil {
		t.Fatalf("UpsertShips() error = %v", err)
	}

	tests := []struct {
		name     string
		idOrSlug string
		wantErr  error
	}{
		{"by uuid", "33333333-3333-3333-3333-333333333333", nil},
		{"by slug", "carrack", nil},
		{"unknown uuid", "99999999-9999-9999-9999-999999999999", ErrShipNotFound},
		{"unknown slug", "no-such-ship", ErrShipNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FindByIDOrSlug(ctx, tt.idOrSlug)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("FindByIDOrSlug(%q) error = %v, want %v", tt.idOrSlug, err, tt.wantErr)
			}
			if tt.wantErr == nil && got.ExternalID != ship.ExternalID {
				t.Errorf("FindByIDOrSlug(%q).ExternalID = %q, want %q", tt.idOrSlug, got.ExternalID, ship.ExternalID)
			}
		})
	}
}

func TestFindManyByExternalIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.UpsertShips(ctx, testShips(4)); err != nil {
		t.Fatalf("UpsertShips() error = %v", err)
	}

	ids := []string{
		"00000000-0000-0000-0000-000000000001",
		"00000000-0000-0000-0000-000000000003",
		"99999999-9999-9999-9999-999999999999", // missing, skipped
	}
	ships, err := s.FindManyByExternalIDs(ctx, ids)
	if err != nil {
		t.Fatalf("FindManyByExternalIDs() error = %v", err)
	}
	if len(ships) != 2 {
		t.Errorf("FindManyByExternalIDs() returned %d ships, want 2", len(ships))
	}
}

func TestGetShipTimestamps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ships := testShips(3)
	ships[1].ExternalUpdatedAt = "2026-05-05T12:00:00Z"
	if _, err := s.UpsertShips(ctx, ships); err != nil {
		t.Fatalf("UpsertShips() error = %v", err)
	}

	timestamps, err := s.GetShipTimestamps(ctx)
	if err != nil {
		t.Fatalf("GetShipTimestamps() error = %v", err)
	}
	if len(timestamps) != 3 {
		t.Fatalf("GetShipTimestamps() returned %d entries, want 3", len(timestamps))
	}
	if got := timestamps[ships[1].ExternalID]; got != "2026-05-05T12:00:00Z" {
		t.Errorf("timestamp for %s = %q, want %q", ships[1].ExternalID, got, "2026-05-05T12:00:00Z")
	}
}
