// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/hangarbay/fleetindex/internal/logging"
	"github.com/hangarbay/fleetindex/internal/metrics"
	"github.com/hangarbay/fleetindex/internal/models"
)

// UpsertResult reports the per-outcome counts of one bulk upsert.
// Failed and Errors are only populated on the per-document fallback path;
// the bulk path is all-or-nothing.
type UpsertResult struct {
	New       int
	Updated   int
	Unchanged int
	Failed    int
	Errors    []string
}

// UpsertShips performs an idempotent bulk upsert keyed by ExternalID.
//
// Preferred path: one Badger transaction covering the whole batch.
// If that fails (transaction size limits, transient write errors), it
// falls back to per-document upserts with independent error handling so
// one bad document cannot abort the batch; partial success is reflected
// accurately in the returned counts.
//
// Semantics per document:
//   - absent               -> insert, CreatedAt set now (and never again)
//   - ExternalUpdatedAt == -> unchanged, document left untouched
//   - otherwise            -> replace, CreatedAt preserved
func (s *Store) UpsertShips(ctx context.Context, ships []models.Ship) (*UpsertResult, error) {
	defer metrics.ObserveStoreOperation("upsert", time.Now())

	if len(ships) == 0 {
		return &UpsertResult{}, nil
	}

	result, err := s.upsertBulk(ships)
	if err == nil {
		return result, nil
	}

	logging.Warn().Err(err).Int("batch", len(ships)).Msg("Bulk upsert failed, falling back to per-document writes")
	metrics.StoreBulkFallbacks.Inc()

	return s.upsertPerDocument(ctx, ships), nil
}

// upsertBulk writes the whole batch in a single transaction.
func (s *Store) upsertBulk(ships []models.Ship) (*UpsertResult, error) {
	result := &UpsertResult{}

	staleNames := make(map[string]string)
	err := s.db.Update(func(txn *badger.Txn) error {
		for i := range ships {
			outcome, staleName, err := upsertShipTxn(txn, &ships[i])
			if err != nil {
				return err
			}
			if staleName != "" {
				staleNames[ships[i].ExternalID] = staleName
			}
			result.count(outcome)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for id, name := range staleNames {
		s.idx.remove(id, name)
	}
	s.indexBatch(ships)
	return result, nil
}

// upsertPerDocument writes each document in its own transaction,
// collecting errors instead of propagating them.
func (s *Store) upsertPerDocument(ctx context.Context, ships []models.Ship) *UpsertResult {
	result := &UpsertResult{}

	for i := range ships {
		if ctx.Err() != nil {
			result.Failed += len(ships) - i
			result.Errors = append(result.Errors, fmt.Sprintf("upsert canceled with %d documents remaining", len(ships)-i))
			break
		}

		var (
			outcome   upsertOutcome
			staleName string
		)
		err := s.db.Update(func(txn *badger.Txn) error {
			var txnErr error
			outcome, staleName, txnErr = upsertShipTxn(txn, &ships[i])
			return txnErr
		})
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("ship %s: %v", ships[i].ExternalID, err))
			logging.Error().Err(err).Str("external_id", ships[i].ExternalID).Msg("Failed to upsert ship")
			continue
		}
		result.count(outcome)
		if staleName != "" {
			s.idx.remove(ships[i].ExternalID, staleName)
		}
		s.idx.add(ships[i].ExternalID, ships[i].Name)
	}

	return result
}

type upsertOutcome int

const (
	outcomeNew upsertOutcome = iota
	outcomeUpdated
	outcomeUnchanged
)

func (r *UpsertResult) count(o upsertOutcome) {
	switch o {
	case outcomeNew:
		r.New++
	case outcomeUpdated:
		r.Updated++
	case outcomeUnchanged:
		r.Unchanged++
	}
}

// upsertShipTxn applies one document inside an open transaction.
// staleName is the stored name when the upsert renamed the ship, so
// callers can drop its tokens from the name index after commit.
func upsertShipTxn(txn *badger.Txn, ship *models.Ship) (outcome upsertOutcome, staleName string, err error) {
	now := time.Now().UTC()
	outcome = outcomeNew

	existing, err := getShipTxn(txn, ship.ExternalID)
	switch {
	case errors.Is(err, ErrShipNotFound):
		ship.CreatedAt = now
	case err != nil:
		return outcome, "", err
	case existing.ExternalUpdatedAt == ship.ExternalUpdatedAt:
		// Identical upstream timestamp: leave the stored document alone,
		// including its SyncVersion.
		return outcomeUnchanged, "", nil
	default:
		outcome = outcomeUpdated
		ship.CreatedAt = existing.CreatedAt
		if existing.Name != ship.Name {
			staleName = existing.Name
		}
		// Slug changed upstream: the old secondary index entry is stale.
		if existing.Slug != ship.Slug {
			if err := txn.Delete(slugKey(existing.Slug)); err != nil {
				return outcome, staleName, fmt.Errorf("failed to drop stale slug index %s: %w", existing.Slug, err)
			}
		}
	}

	ship.UpdatedAt = now

	data, err := json.Marshal(ship)
	if err != nil {
		return outcome, staleName, fmt.Errorf("failed to marshal ship %s: %w", ship.ExternalID, err)
	}
	if err := txn.Set(shipKey(ship.ExternalID), data); err != nil {
		return outcome, staleName, fmt.Errorf("failed to set ship %s: %w", ship.ExternalID, err)
	}
	if err := txn.Set(slugKey(ship.Slug), []byte(ship.ExternalID)); err != nil {
		return outcome, staleName, fmt.Errorf("failed to set slug index %s: %w", ship.Slug, err)
	}

	return outcome, staleName, nil
}

func (s *Store) indexBatch(ships []models.Ship) {
	for i := range ships {
		s.idx.add(ships[i].ExternalID, ships[i].Name)
	}
}

// GetShipCount returns the number of ship documents in the collection.
// Key-only iteration; document values are never loaded.
func (s *Store) GetShipCount(ctx context.Context) (int, error) {
	defer metrics.ObserveStoreOperation("count", time.Now())

	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(shipKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count ships: %w", err)
	}
	return count, nil
}

// shipTimestamps is the projection decoded for delta filtering. Only two
// fields are unmarshaled per document.
type shipTimestamps struct {
	ExternalID        string `json:"external_id"`
	ExternalUpdatedAt string `json:"external_updated_at"`
}

// GetShipTimestamps returns externalID -> externalUpdatedAt for every
// stored ship. The orchestrator uses it to skip unchanged records before
// validation and transform run.
func (s *Store) GetShipTimestamps(ctx context.Context) (map[string]string, error) {
	defer metrics.ObserveStoreOperation("timestamps", time.Now())

	timestamps := make(map[string]string)
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
				var ts shipTimestamps
				if err := json.Unmarshal(val, &ts); err != nil {
					return fmt.Errorf("failed to decode timestamp projection: %w", err)
				}
				timestamps[ts.ExternalID] = ts.ExternalUpdatedAt
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to project ship timestamps: %w", err)
	}
	return timestamps, nil
}

// FindByExternalID returns the ship with the given external UUID.
func (s *Store) FindByExternalID(ctx context.Context, externalID string) (*models.Ship, error) {
	defer metrics.ObserveStoreOperation("find_by_id", time.Now())

	var ship *models.Ship
	err := s.db.View(func(txn *badger.Txn) error {
		var txnErr error
		ship, txnErr = getShipTxn(txn, externalID)
		return txnErr
	})
	if err != nil {
		return nil, err
	}
	return ship, nil
}

// FindBySlug returns the ship with the given slug via the secondary index.
func (s *Store) FindBySlug(ctx context.Context, slug string) (*models.Ship, error) {
	defer metrics.ObserveStoreOperation("find_by_slug", time.Now())

	var ship *models.Ship
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(slugKey(slug))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrShipNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get slug index %s: %w", slug, err)
		}

		var externalID string
		if err := item.Value(func(val []byte) error {
			externalID = string(val)
			return nil
		}); err != nil {
			return err
		}

		ship, err = getShipTxn(txn, externalID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ship, nil
}

// FindByIDOrSlug dispatches on whether the input parses as a UUID.
// Slugs are free-form upstream strings, so anything that is not a UUID
// goes through the slug index.
func (s *Store) FindByIDOrSlug(ctx context.Context, idOrSlug string) (*models.Ship, error) {
	if _, err := uuid.Parse(idOrSlug); err == nil {
		return s.FindByExternalID(ctx, idOrSlug)
	}
	return s.FindBySlug(ctx, idOrSlug)
}

// FindManyByExternalIDs returns all ships matching the given ids in a
// single store round trip. Missing ids are silently absent from the
// result; the caller bounds the batch size.
func (s *Store) FindManyByExternalIDs(ctx context.Context, externalIDs []string) ([]models.Ship, error) {
	defer metrics.ObserveStoreOperation("find_many", time.Now())

	ships := make([]models.Ship, 0, len(externalIDs))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range externalIDs {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			ship, err := getShipTxn(txn, id)
			if errors.Is(err, ErrShipNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			ships = append(ships, *ship)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to batch-get ships: %w", err)
	}
	return ships, nil
}
