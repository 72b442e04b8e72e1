package app

import (
	"context"
	"time"

	"github.com/artpar/usageledger/domain/usage"
	"github.com/artpar/usageledger/ports"
)

// AnalyticsService reads the derived rollup relations for reporting.
// It never touches the ledger and never writes.
type AnalyticsService struct {
	rollups ports.RollupStore
}

// NewAnalyticsService creates a new analytics service.
func NewAnalyticsService(rollups ports.RollupStore) *AnalyticsService {
	return &AnalyticsService{rollups: rollups}
}

// normalizeRange clamps a date range to UTC day boundaries. The end date
// is inclusive as supplied, exclusive after normalization.
func normalizeRange(from, to time.Time) (time.Time, time.Time) {
	return usage.DateOf(from), usage.DateOf(to).Add(24 * time.Hour)
}

// DailyCosts returns a project's per-day cost rows for [from, to].
func (s *AnalyticsService) DailyCosts(ctx context.Context, projectID string, from, to time.Time) ([]usage.DailyRollup, error) {
	lo, hi := normalizeRange(from, to)
	return s.rollups.DailyCosts(ctx, projectID, lo, hi)
}

// ModelCosts returns a project's per-model cost rows for [from, to].
func (s *AnalyticsService) ModelCosts(ctx context.Context, projectID string, from, to time.Time) ([]usage.ModelRollup, error) {
	lo, hi := normalizeRange(from, to)
	return s.rollups.ModelCosts(ctx, projectID, lo, hi)
}

// EndpointCosts returns a project's per-endpoint cost rows for [from, to].
func (s *AnalyticsService) EndpointCosts(ctx context.Context, projectID string, from, to time.Time) ([]usage.EndpointRollup, error) {
	lo, hi := normalizeRange(from, to)
	return s.rollups.EndpointCosts(ctx, projectID, lo, hi)
}
