package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/artpar/usageledger/adapters/metrics"
	"github.com/artpar/usageledger/domain/pricing"
	"github.com/artpar/usageledger/domain/usage"
	"github.com/artpar/usageledger/ports"
)

// IngestDeps contains dependencies for IngestService.
type IngestDeps struct {
	Events  ports.EventStore
	Clock   ports.Clock
	IDGen   ports.IDGenerator
	Metrics *metrics.Collector // optional
}

// IngestService prices reported calls and appends them to the ledger.
type IngestService struct {
	events  ports.EventStore
	clock   ports.Clock
	idGen   ports.IDGenerator
	metrics *metrics.Collector

	// Pricing table, hot-reloadable.
	table atomic.Pointer[pricing.Table]
}

// NewIngestService creates a new ingest service.
func NewIngestService(deps IngestDeps, table pricing.Table) *IngestService {
	s := &IngestService{
		events:  deps.Events,
		clock:   deps.Clock,
		idGen:   deps.IDGen,
		metrics: deps.Metrics,
	}
	s.UpdateTable(table)
	return s
}

// UpdateTable swaps the pricing table. Thread-safe; an in-flight ingest
// keeps the snapshot it started with.
func (s *IngestService) UpdateTable(table pricing.Table) {
	s.table.Store(&table)
}

// Table returns the current pricing table snapshot.
func (s *IngestService) Table() pricing.Table {
	return *s.table.Load()
}

// Ingest validates and prices a reported call, then appends it to the
// ledger. The stored event is returned. Validation and pricing failures
// leave the ledger untouched.
func (s *IngestService) Ingest(ctx context.Context, projectID string, p usage.Params) (usage.Event, error) {
	start := s.clock.Now()
	table := s.table.Load()

	// 1. Validate caller-supplied fields (PURE)
	if err := p.Validate(); err != nil {
		return usage.Event{}, err
	}

	// 2. Price the call (PURE)
	cost, err := table.Price(p.Model, p.InputTokens, p.OutputTokens)
	if err != nil {
		return usage.Event{}, err
	}

	// 3. Build the event (PURE)
	e := usage.NewEvent(s.idGen.New(), projectID, start, p, cost)

	// 4. Append to the ledger (I/O)
	if err := s.events.Record(ctx, e); err != nil {
		return usage.Event{}, fmt.Errorf("record event: %w", err)
	}

	if s.metrics != nil {
		s.metrics.EventsRecorded.WithLabelValues(e.Model, string(e.Environment)).Inc()
		s.metrics.IngestDuration.Observe(time.Since(start).Seconds())
	}
	return e, nil
}

// KnownModels returns the models the current pricing table can price.
func (s *IngestService) KnownModels() []string {
	return s.table.Load().Known()
}
