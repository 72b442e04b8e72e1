package sqlite

import (
	"context"
	"fmt"

	"github.com/artpar/usageledger/domain/ratelimit"
	"github.com/artpar/usageledger/ports"
)

// CounterStore implements ports.CounterStore using SQLite.
//
// Increments use INSERT ... ON CONFLICT DO UPDATE on the counter's
// composite key, so concurrent requests hitting the same bucket serialize
// at the storage layer and every admitted request is counted exactly once.
type CounterStore struct {
	db *DB
}

// NewCounterStore creates a new SQLite counter store.
func NewCounterStore(db *DB) *CounterStore {
	return &CounterStore{db: db}
}

// Counts reads the current count for every bucket. Missing rows report
// zero. This performs no writes.
func (s *CounterStore) Counts(ctx context.Context, ownerID string, buckets []ratelimit.Bucket) (map[ratelimit.Kind]int64, error) {
	counts := make(map[ratelimit.Kind]int64, len(buckets))
	for _, b := range buckets {
		var count int64
		err := s.db.QueryRowContext(ctx, `
			SELECT COALESCE(
				(SELECT request_count FROM quota_counters
				 WHERE owner_id = ? AND window_kind = ? AND window_start = ?),
				0)
		`, ownerID, string(b.Kind), formatTime(b.Start)).Scan(&count)
		if err != nil {
			return nil, fmt.Errorf("read counter %s/%s: %w", ownerID, b.Kind, err)
		}
		counts[b.Kind] = count
	}
	return counts, nil
}

// IncrementAll adds one to every bucket's counter inside one transaction.
// A failure on any bucket rolls back the whole set, so there is never a
// partially incremented window set.
func (s *CounterStore) IncrementAll(ctx context.Context, ownerID string, buckets []ratelimit.Bucket) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin increment: %w", err)
	}
	defer tx.Rollback()

	for _, b := range buckets {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO quota_counters (owner_id, window_kind, window_start, request_count)
			VALUES (?, ?, ?, 1)
			ON CONFLICT(owner_id, window_kind, window_start) DO UPDATE SET
				request_count = request_count + 1
		`, ownerID, string(b.Kind), formatTime(b.Start))
		if err != nil {
			return fmt.Errorf("increment counter %s/%s: %w", ownerID, b.Kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit increments: %w", err)
	}
	return nil
}

// Ensure interface compliance.
var _ ports.CounterStore = (*CounterStore)(nil)
