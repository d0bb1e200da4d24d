// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/hangarbay/fleetindex/internal/logging"
	"github.com/hangarbay/fleetindex/internal/metrics"
	"github.com/hangarbay/fleetindex/internal/models"
)

// Search returns a page of ships matching the filter, sorted by name.
//
// Text search is two-tier: the in-memory name index pre-filters
// candidates for single-term queries, everything else (stale index,
// multi-word queries) falls back to a full scan. The stored name is
// re-checked on both paths, so the index only skips documents that
// cannot match and the two paths always return identical results.
func (s *Store) Search(ctx context.Context, filter *models.SearchFilter) (*models.PagedShips, error) {
	defer metrics.ObserveStoreOperation("search", time.Now())

	var candidates map[string]struct{}

	if filter.Search != "" {
		var err error
		candidates, err = s.idx.lookup(filter.Search)
		if err != nil {
			// Scan path. Counted so a persistently stale index shows up
			// in monitoring.
			metrics.SearchFallbacks.Inc()
			logging.Debug().Str("query", filter.Search).Msg("Name index unavailable for query, scanning")
			candidates = nil
		}
	}

	matched := make([]models.Ship, 0, 64)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(shipKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		search := strings.ToLower(filter.Search)
		for it.Rewind(); it.Valid(); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			err := it.Item().Value(func(val []byte) error {
				ship, err := decodeShip(val)
				if err != nil {
					return err
				}
				if candidates != nil {
					if _, ok := candidates[ship.ExternalID]; !ok {
						return nil
					}
				}
				// The index reflects names as of the last write; the
				// stored name is authoritative on both paths.
				if filter.Search != "" && !strings.Contains(strings.ToLower(ship.Name), search) {
					return nil
				}
				if !matchesFilter(ship, filter) {
					return nil
				}
				matched = append(matched, *ship)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search ships: %w", err)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Name < matched[j].Name
	})

	return paginate(matched, filter.Page, filter.PageSize), nil
}

// matchesFilter applies the structured (non-text) filter fields.
// All comparisons are case-insensitive. The manufacturer filter accepts
// code, slug, or full name since callers use all three interchangeably.
func matchesFilter(ship *models.Ship, filter *models.SearchFilter) bool {
	if filter.Manufacturer != "" {
		m := strings.ToLower(filter.Manufacturer)
		if !strings.EqualFold(ship.Manufacturer.Code, m) &&
			!strings.EqualFold(ship.Manufacturer.Slug, m) &&
			!strings.EqualFold(ship.Manufacturer.Name, m) {
			return false
		}
	}
	if filter.Size != "" && !strings.EqualFold(ship.Size, filter.Size) {
		return false
	}
	if filter.Classification != "" && !strings.EqualFold(ship.Classification, filter.Classification) {
		return false
	}
	if filter.ProductionStatus != "" && !strings.EqualFold(ship.ProductionStatus, filter.ProductionStatus) {
		return false
	}
	return true
}

// paginate slices a sorted result set into the requested page.
// Pages are 1-based; a page past the end returns an empty item list
// with the true total so clients can recover.
func paginate(ships []models.Ship, page, pageSize int) *models.PagedShips {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	total := len(ships)
	totalPages := (total + pageSize - 1) / pageSize

	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &models.PagedShips{
		Items:      ships[start:end],
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}

// AggregateManufacturers returns the distinct manufacturers across the
// catalog with their ship counts, sorted by manufacturer name.
func (s *Store) AggregateManufacturers(ctx context.Context) ([]models.ManufacturerCount, error) {
	defer metrics.ObserveStoreOperation("aggregate_manufacturers", time.Now())

	counts := make(map[string]*models.ManufacturerCount)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(shipKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			err := it.Item().Value(func(val []byte) error {
				ship, err := decodeShip(val)
				if err != nil {
					return err
				}
				mc, ok := counts[ship.Manufacturer.Code]
				if !ok {
					mc = &models.ManufacturerCount{
						Name: ship.Manufacturer.Name,
						Code: ship.Manufacturer.Code,
						Slug: ship.Manufacturer.Slug,
					}
					counts[ship.Manufacturer.Code] = mc
				}
				mc.Count++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate manufacturers: %w", err)
	}

	manufacturers := make([]models.ManufacturerCount, 0, len(counts))
	for _, mc := range counts {
		manufacturers = append(manufacturers, *mc)
	}
	sort.Slice(manufacturers, func(i, j int) bool {
		return manufacturers[i].Name < manufacturers[j].Name
	})
	return manufacturers, nil
}
