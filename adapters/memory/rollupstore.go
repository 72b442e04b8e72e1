package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/artpar/usageledger/domain/usage"
	"github.com/artpar/usageledger/ports"
)

// RollupStore is an in-memory implementation of ports.RollupStore.
type RollupStore struct {
	mu       sync.RWMutex
	daily    map[string]usage.DailyRollup
	model    map[string]usage.ModelRollup
	endpoint map[string]usage.EndpointRollup

	// Upserts counts calls to UpsertSet, for test assertions.
	Upserts int
	// FailUpserts makes UpsertSet return an error.
	FailUpserts bool
}

// NewRollupStore creates a new in-memory rollup store.
func NewRollupStore() *RollupStore {
	return &RollupStore{
		daily:    make(map[string]usage.DailyRollup),
		model:    make(map[string]usage.ModelRollup),
		endpoint: make(map[string]usage.EndpointRollup),
	}
}

// UpsertSet writes every row of the set keyed by its grouping dimensions.
func (s *RollupStore) UpsertSet(ctx context.Context, set usage.RollupSet, updatedAt time.Time) error {
	if s.FailUpserts {
		return fmt.Errorf("rollup store unavailable")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.Upserts++
	for _, r := range set.Daily {
		k := fmt.Sprintf("%s|%s|%s", r.Date.Format("2006-01-02"), r.Environment, r.ProjectID)
		s.daily[k] = r
	}
	for _, r := range set.Model {
		k := fmt.Sprintf("%s|%s|%s|%s", r.Date.Format("2006-01-02"), r.Model, r.Environment, r.ProjectID)
		s.model[k] = r
	}
	for _, r := range set.Endpoint {
		k := fmt.Sprintf("%s|%s|%s|%s", r.Date.Format("2006-01-02"), r.Endpoint, r.Environment, r.ProjectID)
		s.endpoint[k] = r
	}
	return nil
}

// DailyCosts returns per-day rollups for a project.
func (s *RollupStore) DailyCosts(ctx context.Context, projectID string, from, to time.Time) ([]usage.DailyRollup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []usage.DailyRollup
	for _, r := range s.daily {
		if r.ProjectID == projectID && inRange(r.Date, from, to) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ModelCosts returns per-model rollups for a project.
func (s *RollupStore) ModelCosts(ctx context.Context, projectID string, from, to time.Time) ([]usage.ModelRollup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []usage.ModelRollup
	for _, r := range s.model {
		if r.ProjectID == projectID && inRange(r.Date, from, to) {
			out = append(out, r)
		}
	}
	return out, nil
}

// EndpointCosts returns per-endpoint rollups for a project.
func (s *RollupStore) EndpointCosts(ctx context.Context, projectID string, from, to time.Time) ([]usage.EndpointRollup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []usage.EndpointRollup
	for _, r := range s.endpoint {
		if r.ProjectID == projectID && inRange(r.Date, from, to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func inRange(d, from, to time.Time) bool {
	return !d.Before(from) && d.Before(to)
}

// Ensure interface compliance.
var _ ports.RollupStore = (*RollupStore)(nil)
