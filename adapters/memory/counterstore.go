// Package memory provides in-memory implementations for testing.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/artpar/usageledger/domain/ratelimit"
	"github.com/artpar/usageledger/ports"
)

// CounterStore is an in-memory implementation of ports.CounterStore.
type CounterStore struct {
	mu     sync.Mutex
	counts map[string]int64

	// FailIncrements makes IncrementAll return an error, for exercising
	// storage-failure paths in service tests.
	FailIncrements bool
	// FailCounts makes Counts return an error.
	FailCounts bool
}

// NewCounterStore creates a new in-memory counter store.
func NewCounterStore() *CounterStore {
	return &CounterStore{
		counts: make(map[string]int64),
	}
}

func counterKey(ownerID string, b ratelimit.Bucket) string {
	return fmt.Sprintf("%s|%s|%d", ownerID, b.Kind, b.Start.Unix())
}

// Counts returns the current count for every bucket.
func (s *CounterStore) Counts(ctx context.Context, ownerID string, buckets []ratelimit.Bucket) (map[ratelimit.Kind]int64, error) {
	if s.FailCounts {
		return nil, fmt.Errorf("counter store unavailable")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[ratelimit.Kind]int64, len(buckets))
	for _, b := range buckets {
		out[b.Kind] = s.counts[counterKey(ownerID, b)]
	}
	return out, nil
}

// IncrementAll adds one to every bucket's counter.
func (s *CounterStore) IncrementAll(ctx context.Context, ownerID string, buckets []ratelimit.Bucket) error {
	if s.FailIncrements {
		return fmt.Errorf("counter store unavailable")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range buckets {
		s.counts[counterKey(ownerID, b)]++
	}
	return nil
}

// Count returns the stored count for one bucket, for test assertions.
func (s *CounterStore) Count(ownerID string, kind ratelimit.Kind, start time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[counterKey(ownerID, ratelimit.Bucket{Kind: kind, Start: start})]
}

// Ensure interface compliance.
var _ ports.CounterStore = (*CounterStore)(nil)
