package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/artpar/usageledger/adapters/clock"
	"github.com/artpar/usageledger/adapters/memory"
	"github.com/artpar/usageledger/app"
	"github.com/artpar/usageledger/domain/usage"
)

func newAggregator(events *memory.EventStore, rollups *memory.RollupStore, clk *clock.Fake) *app.AggregatorService {
	return app.NewAggregatorService(app.AggregatorDeps{
		Events:  events,
		Rollups: rollups,
		Clock:   clk,
	})
}

func recordEvent(t *testing.T, events *memory.EventStore, id, projectID, model, endpoint string, at time.Time, cost string) {
	t.Helper()
	e := usage.NewEvent(id, projectID, at, usage.Params{
		Provider:     "openai",
		Model:        model,
		InputTokens:  500,
		OutputTokens: 150,
		Endpoint:     endpoint,
		Environment:  usage.EnvProd,
	}, decimal.RequireFromString(cost))
	if err := events.Record(context.Background(), e); err != nil {
		t.Fatalf("record: %v", err)
	}
}

func TestAggregator_Recompute(t *testing.T) {
	events := memory.NewEventStore()
	rollups := memory.NewRollupStore()
	clk := clock.NewFake(time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC))
	svc := newAggregator(events, rollups, clk)

	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	recordEvent(t, events, "evt-1", "proj-1", "gpt-4", "/v1/chat/completions", date.Add(10*time.Hour), "0.024")
	recordEvent(t, events, "evt-2", "proj-1", "gpt-4", "/v1/chat/completions", date.Add(11*time.Hour), "0.024")
	recordEvent(t, events, "evt-3", "proj-1", "gpt-3.5-turbo", "/v1/embeddings", date.Add(12*time.Hour), "0.001")

	result, err := svc.Recompute(context.Background(), date)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if result.Events != 3 {
		t.Errorf("events covered: got %d, want 3", result.Events)
	}
	if result.Daily != 1 || result.Model != 2 || result.Endpoint != 2 {
		t.Errorf("row counts: %+v", result)
	}

	daily, err := rollups.DailyCosts(context.Background(), "proj-1", date, date.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("daily costs: %v", err)
	}
	if len(daily) != 1 {
		t.Fatalf("got %d daily rows, want 1", len(daily))
	}
	if !daily[0].TotalCostUSD.Equal(decimal.RequireFromString("0.049")) {
		t.Errorf("daily cost: got %s, want 0.049", daily[0].TotalCostUSD)
	}
	if daily[0].RequestCount != 3 {
		t.Errorf("daily requests: got %d, want 3", daily[0].RequestCount)
	}
}

func TestAggregator_Idempotent(t *testing.T) {
	events := memory.NewEventStore()
	rollups := memory.NewRollupStore()
	clk := clock.NewFake(time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC))
	svc := newAggregator(events, rollups, clk)

	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	recordEvent(t, events, "evt-1", "proj-1", "gpt-4", "/v1/chat/completions", date.Add(10*time.Hour), "0.024")

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := svc.Recompute(ctx, date); err != nil {
			t.Fatalf("recompute %d: %v", i, err)
		}
	}

	daily, _ := rollups.DailyCosts(ctx, "proj-1", date, date.Add(24*time.Hour))
	if len(daily) != 1 {
		t.Fatalf("got %d daily rows after reruns, want 1", len(daily))
	}
	if daily[0].RequestCount != 1 || !daily[0].TotalCostUSD.Equal(decimal.RequireFromString("0.024")) {
		t.Errorf("rerun changed the row: %+v", daily[0])
	}
}

func TestAggregator_EmptyDateWritesNothing(t *testing.T) {
	events := memory.NewEventStore()
	rollups := memory.NewRollupStore()
	clk := clock.NewFake(time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC))
	svc := newAggregator(events, rollups, clk)

	result, err := svc.Recompute(context.Background(), time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if result.Events != 0 || result.Daily != 0 {
		t.Errorf("result: %+v, want all zero", result)
	}
	if rollups.Upserts != 0 {
		t.Errorf("upsert calls on empty date: got %d, want 0", rollups.Upserts)
	}
}

func TestAggregator_UnownedEventsExcluded(t *testing.T) {
	events := memory.NewEventStore()
	rollups := memory.NewRollupStore()
	clk := clock.NewFake(time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC))
	svc := newAggregator(events, rollups, clk)

	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	recordEvent(t, events, "evt-1", "proj-1", "gpt-4", "/v1/chat/completions", date.Add(10*time.Hour), "0.024")
	recordEvent(t, events, "evt-2", "", "gpt-4", "/v1/chat/completions", date.Add(11*time.Hour), "0.024")

	result, err := svc.Recompute(context.Background(), date)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if result.Events != 2 {
		t.Errorf("events covered: got %d, want 2", result.Events)
	}

	daily, _ := rollups.DailyCosts(context.Background(), "proj-1", date, date.Add(24*time.Hour))
	if len(daily) != 1 || daily[0].RequestCount != 1 {
		t.Errorf("unowned event leaked into rollups: %+v", daily)
	}
}

func TestAggregator_StorageFailure(t *testing.T) {
	events := memory.NewEventStore()
	rollups := memory.NewRollupStore()
	rollups.FailUpserts = true
	clk := clock.NewFake(time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC))
	svc := newAggregator(events, rollups, clk)

	date := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	recordEvent(t, events, "evt-1", "proj-1", "gpt-4", "/v1/chat/completions", date.Add(10*time.Hour), "0.024")

	if _, err := svc.Recompute(context.Background(), date); err == nil {
		t.Fatal("expected error from failing rollup store")
	}
}
