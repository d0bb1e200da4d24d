// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

// Package store implements the ship document collection and the sync
// audit log on BadgerDB.
//
// Layout is three key spaces in one Badger instance:
//
//	ship:<externalID>  -> JSON ship document
//	slug:<slug>        -> externalID (secondary index)
//	audit:<version>    -> JSON audit record, zero-padded for ordering
//
// The store never deletes catalog documents. A ship disappearing from the
// upstream feed may be a transient fetch failure; stale-but-present is
// safer than data loss. The only deletions are stale slug index entries
// when a ship's slug changes upstream.
package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/hangarbay/fleetindex/internal/config"
	"github.com/hangarbay/fleetindex/internal/logging"
	"github.com/hangarbay/fleetindex/internal/models"
)

const (
	shipKeyPrefix  = "ship:"
	slugKeyPrefix  = "slug:"
	auditKeyPrefix = "audit:"
)

// Sentinel errors for lookup misses.
var (
	ErrShipNotFound  = errors.New("ship not found")
	ErrAuditNotFound = errors.New("no audit records")
)

// Store is the BadgerDB-backed document store for ship documents and
// sync audit records. Safe for concurrent use; the sync orchestrator is
// the sole writer of catalog documents, readers may run at any time.
type Store struct {
	db  *badger.DB
	idx *nameIndex
}

// Open opens (or creates) the store at the configured path and rebuilds
// the in-memory name index from the persisted documents.
func Open(cfg *config.DatabaseConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %s: %w", cfg.Path, err)
	}

	s := &Store{
		db:  db,
		idx: newNameIndex(),
	}

	if err := s.rebuildNameIndex(); err != nil {
		// The index is an optimization for text search; the substring
		// fallback serves queries until the next successful rebuild.
		logging.Warn().Err(err).Msg("Failed to rebuild name index, text search will use fallback")
		s.idx.markStale()
	}

	return s, nil
}

// Close closes the underlying Badger instance.
func (s *Store) Close() error {
	return s.db.Close()
}

func shipKey(externalID string) []byte {
	return []byte(shipKeyPrefix + externalID)
}

func slugKey(slug string) []byte {
	return []byte(slugKeyPrefix + slug)
}

// auditKey orders records by zero-padded version; the run ID suffix
// keeps the log append-only even if two runs ever stamp the same
// version, such as a run that could not read the previous record.
func auditKey(version int64, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", auditKeyPrefix, version, id))
}

// decodeShip unmarshals a stored ship document.
func decodeShip(val []byte) (*models.Ship, error) {
	var ship models.Ship
	if err := json.Unmarshal(val, &ship); err != nil {
		return nil, fmt.Errorf("failed to decode ship document: %w", err)
	}
	return &ship, nil
}

// getShipTxn reads one ship inside an open transaction.
func getShipTxn(txn *badger.Txn, externalID string) (*models.Ship, error) {
	item, err := txn.Get(shipKey(externalID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrShipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ship %s: %w", externalID, err)
	}

	var ship *models.Ship
	err = item.Value(func(val []byte) error {
		ship, err = decodeShip(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ship, nil
}

// rebuildNameIndex scans all ship documents and rebuilds the text index.
func (s *Store) rebuildNameIndex() error {
	fresh := newNameIndex()

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(shipKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				ship, err := decodeShip(val)
				if err != nil {
					return err
				}
				fresh.add(ship.ExternalID, ship.Name)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.idx.replace(fresh)
	return nil
}
