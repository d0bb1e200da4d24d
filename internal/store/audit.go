// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/hangarbay/fleetindex/internal/metrics"
	"github.com/hangarbay/fleetindex/internal/models"
)

// AppendAudit persists one sync audit record. The log is append-only;
// records are keyed by sync version plus run ID, so the latest record
// is the highest key in the audit key space and no append can replace
// an earlier record.
func (s *Store) AppendAudit(ctx context.Context, audit *models.SyncAudit) error {
	defer metrics.ObserveStoreOperation("append_audit", time.Now())

	data, err := json.Marshal(audit)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(auditKey(audit.SyncVersion, audit.ID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to append audit record v%d: %w", audit.SyncVersion, err)
	}
	return nil
}

// LatestAudit returns the most recent audit record, or ErrAuditNotFound
// when no sync has ever run. Reverse iteration over the zero-padded
// version keys finds it without scanning the log.
func (s *Store) LatestAudit(ctx context.Context) (*models.SyncAudit, error) {
	defer metrics.ObserveStoreOperation("latest_audit", time.Now())

	var audit *models.SyncAudit
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(auditKeyPrefix)
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		// With Reverse set, seek past the prefix range and step back
		// into it. 0xff sorts after any zero-padded digit.
		it.Seek(append([]byte(auditKeyPrefix), 0xff))
		if !it.ValidForPrefix([]byte(auditKeyPrefix)) {
			return ErrAuditNotFound
		}

		return it.Item().Value(func(val []byte) error {
			var a models.SyncAudit
			if err := json.Unmarshal(val, &a); err != nil {
				return fmt.Errorf("failed to decode audit record: %w", err)
			}
			audit = &a
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return audit, nil
}

// ListAudits returns up to limit audit records, newest first.
func (s *Store) ListAudits(ctx context.Context, limit int) ([]models.SyncAudit, error) {
	defer metrics.ObserveStoreOperation("list_audits", time.Now())

	if limit <= 0 {
		limit = 20
	}

	audits := make([]models.SyncAudit, 0, limit)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(auditKeyPrefix)
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append([]byte(auditKeyPrefix), 0xff)); it.ValidForPrefix([]byte(auditKeyPrefix)) && len(audits) < limit; it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			err := it.Item().Value(func(val []byte) error {
				var a models.SyncAudit
				if err := json.Unmarshal(val, &a); err != nil {
					return fmt.Errorf("failed to decode audit record: %w", err)
				}
				audits = append(audits, a)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	return audits, nil
}
