package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/artpar/usageledger/adapters/clock"
	"github.com/artpar/usageledger/adapters/idgen"
	"github.com/artpar/usageledger/adapters/memory"
	"github.com/artpar/usageledger/app"
	"github.com/artpar/usageledger/domain/pricing"
	"github.com/artpar/usageledger/domain/usage"
)

func newIngest(events *memory.EventStore, clk *clock.Fake) *app.IngestService {
	return app.NewIngestService(app.IngestDeps{
		Events: events,
		Clock:  clk,
		IDGen:  idgen.NewSequential("evt"),
	}, pricing.DefaultTable())
}

func validParams() usage.Params {
	return usage.Params{
		Provider:     "openai",
		Model:        "gpt-4",
		InputTokens:  500,
		OutputTokens: 150,
		LatencyMs:    840,
		Endpoint:     "/v1/chat/completions",
		Environment:  usage.EnvProd,
	}
}

func TestIngest_PricesAndRecords(t *testing.T) {
	events := memory.NewEventStore()
	clk := clock.NewFake(time.Date(2026, 3, 14, 10, 30, 15, 0, time.UTC))
	svc := newIngest(events, clk)

	e, err := svc.Ingest(context.Background(), "proj-1", validParams())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if !e.CostUSD.Equal(decimal.RequireFromString("0.024")) {
		t.Errorf("cost: got %s, want 0.024", e.CostUSD)
	}
	if e.TotalTokens != 650 {
		t.Errorf("total tokens: got %d, want 650", e.TotalTokens)
	}
	if e.ProjectID != "proj-1" {
		t.Errorf("project: got %q", e.ProjectID)
	}
	if !e.Timestamp.Equal(clk.Now()) {
		t.Errorf("timestamp: got %v, want clock time", e.Timestamp)
	}
	if events.Len() != 1 {
		t.Errorf("stored events: got %d, want 1", events.Len())
	}
}

func TestIngest_UnknownModel(t *testing.T) {
	events := memory.NewEventStore()
	clk := clock.NewFake(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	svc := newIngest(events, clk)

	p := validParams()
	p.Model = "gpt-99"
	_, err := svc.Ingest(context.Background(), "proj-1", p)

	var unknownErr *pricing.UnknownModelError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("got %v, want UnknownModelError", err)
	}
	if unknownErr.Model != "gpt-99" {
		t.Errorf("model in error: got %q", unknownErr.Model)
	}
	if len(unknownErr.Known) == 0 {
		t.Error("error carries no supported models")
	}
	if events.Len() != 0 {
		t.Errorf("ledger touched on pricing failure: %d events", events.Len())
	}
}

func TestIngest_ValidationFailure(t *testing.T) {
	events := memory.NewEventStore()
	clk := clock.NewFake(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	svc := newIngest(events, clk)

	p := validParams()
	p.InputTokens = -1
	if _, err := svc.Ingest(context.Background(), "proj-1", p); !errors.Is(err, usage.ErrNegativeTokens) {
		t.Errorf("got %v, want ErrNegativeTokens", err)
	}

	p = validParams()
	p.Environment = "staging"
	if _, err := svc.Ingest(context.Background(), "proj-1", p); !errors.Is(err, usage.ErrInvalidEnvironment) {
		t.Errorf("got %v, want ErrInvalidEnvironment", err)
	}

	if events.Len() != 0 {
		t.Errorf("ledger touched on validation failure: %d events", events.Len())
	}
}

func TestIngest_StorageFailure(t *testing.T) {
	events := memory.NewEventStore()
	events.FailRecord = true
	clk := clock.NewFake(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	svc := newIngest(events, clk)

	if _, err := svc.Ingest(context.Background(), "proj-1", validParams()); err == nil {
		t.Fatal("expected error from failing store")
	}
}

func TestIngest_UpdateTable(t *testing.T) {
	events := memory.NewEventStore()
	clk := clock.NewFake(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	svc := newIngest(events, clk)

	table := pricing.NewTable(map[string]pricing.Rate{
		"house-model": {
			Input:  decimal.RequireFromString("0.001"),
			Output: decimal.RequireFromString("0.002"),
		},
	})
	svc.UpdateTable(table)

	p := validParams()
	p.Model = "house-model"
	e, err := svc.Ingest(context.Background(), "proj-1", p)
	if err != nil {
		t.Fatalf("ingest with swapped table: %v", err)
	}
	// 500/1000*0.001 + 150/1000*0.002 = 0.0005 + 0.0003
	if !e.CostUSD.Equal(decimal.RequireFromString("0.0008")) {
		t.Errorf("cost: got %s, want 0.0008", e.CostUSD)
	}

	// The old table's models are gone.
	if _, err := svc.Ingest(context.Background(), "proj-1", validParams()); err == nil {
		t.Error("gpt-4 still priced after table swap")
	}
}
