// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/artpar/usageledger/adapters/metrics"
	"github.com/artpar/usageledger/domain/ratelimit"
	"github.com/artpar/usageledger/ports"
)

// Limits contains the per-pool quota limits. Hot-reloadable.
type Limits struct {
	PerMinute int64
	PerDay    int64
	AIPerDay  int64
}

// LimiterDeps contains dependencies for LimiterService.
type LimiterDeps struct {
	Counters ports.CounterStore
	Clock    ports.Clock
	Metrics  *metrics.Collector // optional
}

// LimiterService admits or denies billed calls against fixed-window quotas.
type LimiterService struct {
	counters ports.CounterStore
	clock    ports.Clock
	metrics  *metrics.Collector

	limits atomic.Pointer[Limits]
}

// NewLimiterService creates a new limiter service.
func NewLimiterService(deps LimiterDeps, limits Limits) *LimiterService {
	s := &LimiterService{
		counters: deps.Counters,
		clock:    deps.Clock,
		metrics:  deps.Metrics,
	}
	s.UpdateLimits(limits)
	return s
}

// UpdateLimits swaps the quota limits. Thread-safe; takes effect on the
// next admission check.
func (s *LimiterService) UpdateLimits(limits Limits) {
	s.limits.Store(&limits)
}

// CheckAndAdmit checks every applicable quota pool for the owner and, if
// all admit, counts the call against every pool.
//
// The check and the increment are two storage operations, not one: two
// concurrent calls can both observe count = limit-1 and both be admitted.
// That overshoot is accepted. A storage failure is reported as an error,
// never as a denial and never as a silent admit.
func (s *LimiterService) CheckAndAdmit(ctx context.Context, ownerID string, aiAssisted bool) (ratelimit.Decision, error) {
	now := s.clock.Now()
	limits := s.limits.Load()

	windows := ratelimit.GeneralPools(limits.PerMinute, limits.PerDay)
	if aiAssisted {
		windows = ratelimit.FeaturePools(limits.PerMinute, limits.PerDay, limits.AIPerDay)
	}

	buckets := make([]ratelimit.Bucket, len(windows))
	for i, w := range windows {
		buckets[i] = w.BucketFor(now)
	}

	// 1. Read all counters (I/O)
	counts, err := s.counters.Counts(ctx, ownerID, buckets)
	if err != nil {
		return ratelimit.Decision{}, fmt.Errorf("read quota counters: %w", err)
	}

	// 2. Evaluate every pool (PURE)
	decision := ratelimit.Evaluate(windows, counts)
	if !decision.Allowed {
		if s.metrics != nil {
			for _, w := range windows {
				if counts[w.Kind] >= w.Limit {
					s.metrics.RateLimitDenials.WithLabelValues(string(w.Kind)).Inc()
					break
				}
			}
		}
		return decision, nil
	}

	// 3. Count the admitted call against every pool (I/O, atomic)
	if err := s.counters.IncrementAll(ctx, ownerID, buckets); err != nil {
		return ratelimit.Decision{}, fmt.Errorf("increment quota counters: %w", err)
	}

	if s.metrics != nil {
		s.metrics.Admissions.Inc()
	}
	return decision, nil
}
