// Package ratelimit provides pure admission logic for fixed quota windows.
// All functions are deterministic - same input always produces same output.
// Counter storage lives behind ports.CounterStore; nothing here does I/O.
package ratelimit

import "time"

// Kind identifies a quota pool and its bucket granularity.
type Kind string

const (
	// KindMinute is the general requests-per-minute pool.
	KindMinute Kind = "minute"
	// KindDay is the general requests-per-UTC-day pool.
	KindDay Kind = "day"
	// KindAIDay is the feature pool for AI-assisted calls per UTC day.
	// It is independent of KindDay: endpoints that consume it are checked
	// against both pools.
	KindAIDay Kind = "ai_day"
)

// Granularity returns the bucket width for the kind. Unrecognized kinds
// default to a day so that new pools can be added without code changes here.
func (k Kind) Granularity() time.Duration {
	if k == KindMinute {
		return time.Minute
	}
	return 24 * time.Hour
}

// Window couples a pool kind with its configured limit (value type).
type Window struct {
	Kind  Kind
	Limit int64
}

// Bucket identifies one counter row: a pool kind plus the bucket start.
type Bucket struct {
	Kind  Kind
	Start time.Time
}

// BucketStart floors now to the start of the current bucket for kind.
// Minute pools floor to :00 seconds; day-granularity pools floor to
// 00:00:00 UTC. The clock is always UTC.
func BucketStart(kind Kind, now time.Time) time.Time {
	now = now.UTC()
	if kind.Granularity() == time.Minute {
		return now.Truncate(time.Minute)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// BucketFor returns the bucket covering now for the window.
func (w Window) BucketFor(now time.Time) Bucket {
	return Bucket{Kind: w.Kind, Start: BucketStart(w.Kind, now)}
}

// ReasonLimitExceeded is the only denial reason. It is deliberately
// generic: a decision never reveals which pool tripped or how much
// headroom remains.
const ReasonLimitExceeded = "rate_limit_exceeded"

// Decision is the outcome of an admission check (value type).
type Decision struct {
	Allowed bool
	Reason  string // Populated only when Allowed=false
}

// Evaluate decides admission from counter values observed before any
// increment. Exactly-at-limit denies; strictly-below admits. A pool with
// no observed counter row counts as zero.
//
// Two concurrent requests may both observe the same pre-increment value
// and both be admitted when only one slot remains; limits are soft at
// increment granularity, not reservation-based. Callers must not "fix"
// this by re-checking after incrementing.
//
// This is a PURE function.
func Evaluate(windows []Window, counts map[Kind]int64) Decision {
	for _, w := range windows {
		if counts[w.Kind] >= w.Limit {
			return Decision{Allowed: false, Reason: ReasonLimitExceeded}
		}
	}
	return Decision{Allowed: true}
}

// GeneralPools returns the window set for ordinary metered endpoints.
func GeneralPools(perMinute, perDay int64) []Window {
	return []Window{
		{Kind: KindMinute, Limit: perMinute},
		{Kind: KindDay, Limit: perDay},
	}
}

// FeaturePools returns the window set for endpoints that also consume the
// AI feature pool. All three windows are checked and incremented together.
func FeaturePools(perMinute, perDay, aiPerDay int64) []Window {
	return append(GeneralPools(perMinute, perDay), Window{Kind: KindAIDay, Limit: aiPerDay})
}
