package app

import (
	"context"
	"fmt"
	"time"

	"github.com/artpar/usageledger/adapters/metrics"
	"github.com/artpar/usageledger/domain/usage"
	"github.com/artpar/usageledger/ports"
)

// AggregatorDeps contains dependencies for AggregatorService.
type AggregatorDeps struct {
	Events  ports.EventStore
	Rollups ports.RollupStore
	Clock   ports.Clock
	Metrics *metrics.Collector // optional
}

// AggregatorService recomputes the derived rollup relations from the
// event ledger. Recomputation is idempotent: running it any number of
// times over the same ledger yields the same rows.
type AggregatorService struct {
	events  ports.EventStore
	rollups ports.RollupStore
	clock   ports.Clock
	metrics *metrics.Collector
}

// NewAggregatorService creates a new aggregator service.
func NewAggregatorService(deps AggregatorDeps) *AggregatorService {
	return &AggregatorService{
		events:  deps.Events,
		rollups: deps.Rollups,
		clock:   deps.Clock,
		metrics: deps.Metrics,
	}
}

// RecomputeResult reports what a recomputation covered.
type RecomputeResult struct {
	Date     time.Time
	Events   int
	Daily    int
	Model    int
	Endpoint int
}

// Recompute rebuilds all rollup rows for one UTC date from the ledger.
// A date with no attributable events performs zero writes, leaving any
// existing rows for that date in place.
func (s *AggregatorService) Recompute(ctx context.Context, date time.Time) (RecomputeResult, error) {
	start := time.Now()
	day := usage.DateOf(date)

	// 1. Read the day's slice of the ledger (I/O)
	events, err := s.events.ListByDate(ctx, day)
	if err != nil {
		s.countRun("error")
		return RecomputeResult{}, fmt.Errorf("list events for %s: %w", day.Format("2006-01-02"), err)
	}

	// 2. Group into the three relations (PURE)
	set := usage.Rollup(events, day)

	result := RecomputeResult{
		Date:     day,
		Events:   len(events),
		Daily:    len(set.Daily),
		Model:    len(set.Model),
		Endpoint: len(set.Endpoint),
	}
	if set.Empty() {
		s.countRun("empty")
		return result, nil
	}

	// 3. Upsert all rows atomically (I/O)
	if err := s.rollups.UpsertSet(ctx, set, s.clock.Now()); err != nil {
		s.countRun("error")
		return RecomputeResult{}, fmt.Errorf("upsert rollups for %s: %w", day.Format("2006-01-02"), err)
	}

	s.countRun("ok")
	if s.metrics != nil {
		s.metrics.RollupDuration.Observe(time.Since(start).Seconds())
	}
	return result, nil
}

func (s *AggregatorService) countRun(status string) {
	if s.metrics != nil {
		s.metrics.RollupRuns.WithLabelValues(status).Inc()
	}
}
