// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/artpar/usageledger/domain/key"
	"github.com/artpar/usageledger/domain/ratelimit"
	"github.com/artpar/usageledger/domain/usage"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// Hasher hashes and verifies secrets (raw API keys).
type Hasher interface {
	// Hash generates a hash from plaintext.
	Hash(plaintext string) ([]byte, error)
	// Compare checks if plaintext matches hash.
	Compare(hash []byte, plaintext string) bool
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// CounterStore persists quota counters keyed by
// (owner, window kind, window start). Counter rows are created lazily on
// first increment and are mutated by nothing but IncrementAll.
//
// The contract is deliberately split: Counts never writes, IncrementAll
// never reads. The admission service checks every window first, then
// increments every window, so a denial leaves zero partial increments.
type CounterStore interface {
	// Counts returns the current count for every bucket. Buckets with no
	// stored row are reported as zero.
	Counts(ctx context.Context, ownerID string, buckets []ratelimit.Bucket) (map[ratelimit.Kind]int64, error)

	// IncrementAll adds one to every bucket's counter as a single atomic
	// unit: either all buckets are incremented or none are. Each
	// per-bucket increment must be an insert-or-add upsert at the storage
	// layer - concurrent callers on the same bucket must all be counted
	// with no lost updates.
	IncrementAll(ctx context.Context, ownerID string, buckets []ratelimit.Bucket) error
}

// EventStore persists the append-only ledger of priced events - the system
// of record. Events are never updated or deleted.
type EventStore interface {
	// Record appends one priced event.
	Record(ctx context.Context, e usage.Event) error

	// ListByDate returns all events whose timestamp falls on the given
	// UTC calendar date, in insertion order.
	ListByDate(ctx context.Context, date time.Time) ([]usage.Event, error)

	// ListByProject returns one page of a project's events within
	// [from, to), newest first.
	ListByProject(ctx context.Context, projectID string, from, to time.Time, limit, offset int) ([]usage.Event, error)

	// CountByProject returns how many of a project's events fall
	// within [from, to).
	CountByProject(ctx context.Context, projectID string, from, to time.Time) (int64, error)
}

// RollupStore persists the three derived aggregate relations. Rows are
// written only by the aggregator; reporting reads them without ever
// mutating. Everything here is reproducible from the EventStore - safe to
// drop and rebuild.
type RollupStore interface {
	// UpsertSet writes every row of the set, keyed by its grouping
	// dimensions, in one atomic unit: a reader never observes one
	// relation updated for the date and another stale. Existing rows are
	// overwritten; recompute never deletes.
	UpsertSet(ctx context.Context, set usage.RollupSet, updatedAt time.Time) error

	// DailyCosts returns per-day rollups for a project ordered by date.
	DailyCosts(ctx context.Context, projectID string, from, to time.Time) ([]usage.DailyRollup, error)

	// ModelCosts returns per-model rollups for a project and date range.
	ModelCosts(ctx context.Context, projectID string, from, to time.Time) ([]usage.ModelRollup, error)

	// EndpointCosts returns per-endpoint rollups for a project and date range.
	EndpointCosts(ctx context.Context, projectID string, from, to time.Time) ([]usage.EndpointRollup, error)
}

// KeyStore persists API credentials.
type KeyStore interface {
	// GetByPrefix retrieves keys matching a prefix (for validation).
	GetByPrefix(ctx context.Context, prefix string) ([]key.Key, error)

	// Create stores a new key.
	Create(ctx context.Context, k key.Key) error

	// Revoke marks a key as revoked.
	Revoke(ctx context.Context, id string, at time.Time) error

	// ListByProject returns all keys for a project.
	ListByProject(ctx context.Context, projectID string) ([]key.Key, error)

	// UpdateLastUsed updates the last used timestamp.
	UpdateLastUsed(ctx context.Context, id string, at time.Time) error
}

// Project represents one customer workspace - the tenant boundary that
// owns keys, events, and rollups.
type Project struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// ProjectStore persists projects.
type ProjectStore interface {
	// Get retrieves a project by ID.
	Get(ctx context.Context, id string) (Project, error)

	// Create stores a new project.
	Create(ctx context.Context, p Project) error

	// List returns all projects.
	List(ctx context.Context) ([]Project, error)
}
