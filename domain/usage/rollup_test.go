package usage_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/artpar/usageledger/domain/usage"
)

var rollupDate = time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)

func event(project, model, endpoint string, env usage.Environment, at time.Time, cost string, tokens int64) usage.Event {
	return usage.Event{
		ID:          "evt_" + model + at.Format("150405"),
		ProjectID:   project,
		Timestamp:   at,
		Provider:    "openai",
		Model:       model,
		TotalTokens: tokens,
		CostUSD:     decimal.RequireFromString(cost),
		Endpoint:    endpoint,
		Environment: env,
	}
}

func TestRollup_SingleEvent(t *testing.T) {
	events := []usage.Event{
		event("proj_p", "gpt-4", "/api/summarize", usage.EnvProd, rollupDate.Add(10*time.Hour), "0.024", 650),
	}

	set := usage.Rollup(events, rollupDate)

	if len(set.Daily) != 1 || len(set.Model) != 1 || len(set.Endpoint) != 1 {
		t.Fatalf("row counts = %d/%d/%d, want 1/1/1", len(set.Daily), len(set.Model), len(set.Endpoint))
	}

	d := set.Daily[0]
	if !d.TotalCostUSD.Equal(decimal.RequireFromString("0.024")) {
		t.Errorf("daily cost = %s, want 0.024", d.TotalCostUSD)
	}
	if d.TotalTokens != 650 || d.RequestCount != 1 {
		t.Errorf("daily tokens/count = %d/%d, want 650/1", d.TotalTokens, d.RequestCount)
	}
	if d.Environment != usage.EnvProd || d.ProjectID != "proj_p" {
		t.Errorf("daily key = (%s, %s)", d.Environment, d.ProjectID)
	}
}

func TestRollup_DuplicateEventDoubles(t *testing.T) {
	e := event("proj_p", "gpt-4", "/api/summarize", usage.EnvProd, rollupDate.Add(10*time.Hour), "0.024", 650)
	set := usage.Rollup([]usage.Event{e, e}, rollupDate)

	d := set.Daily[0]
	if !d.TotalCostUSD.Equal(decimal.RequireFromString("0.048")) {
		t.Errorf("daily cost = %s, want 0.048", d.TotalCostUSD)
	}
	if d.RequestCount != 2 {
		t.Errorf("request count = %d, want 2", d.RequestCount)
	}
}

func TestRollup_GroupsByDimensions(t *testing.T) {
	events := []usage.Event{
		event("proj_a", "gpt-4", "/api/summarize", usage.EnvProd, rollupDate.Add(1*time.Hour), "0.10", 100),
		event("proj_a", "gpt-4", "/api/chat", usage.EnvProd, rollupDate.Add(2*time.Hour), "0.20", 200),
		event("proj_a", "claude-3-opus", "/api/chat", usage.EnvProd, rollupDate.Add(3*time.Hour), "0.30", 300),
		event("proj_a", "gpt-4", "/api/chat", usage.EnvDev, rollupDate.Add(4*time.Hour), "0.40", 400),
		event("proj_b", "gpt-4", "/api/chat", usage.EnvProd, rollupDate.Add(5*time.Hour), "0.50", 500),
	}

	set := usage.Rollup(events, rollupDate)

	// Daily: (prod, a), (dev, a), (prod, b)
	if len(set.Daily) != 3 {
		t.Fatalf("daily rows = %d, want 3", len(set.Daily))
	}
	// Model: (gpt-4, prod, a), (claude, prod, a), (gpt-4, dev, a), (gpt-4, prod, b)
	if len(set.Model) != 4 {
		t.Fatalf("model rows = %d, want 4", len(set.Model))
	}
	// Endpoint: (summarize, prod, a), (chat, prod, a), (chat, dev, a), (chat, prod, b)
	if len(set.Endpoint) != 4 {
		t.Fatalf("endpoint rows = %d, want 4", len(set.Endpoint))
	}

	var prodA usage.DailyRollup
	for _, d := range set.Daily {
		if d.ProjectID == "proj_a" && d.Environment == usage.EnvProd {
			prodA = d
		}
	}
	if !prodA.TotalCostUSD.Equal(decimal.RequireFromString("0.6")) {
		t.Errorf("proj_a prod cost = %s, want 0.6", prodA.TotalCostUSD)
	}
	if prodA.TotalTokens != 600 || prodA.RequestCount != 3 {
		t.Errorf("proj_a prod tokens/count = %d/%d, want 600/3", prodA.TotalTokens, prodA.RequestCount)
	}
}

func TestRollup_FiltersOtherDates(t *testing.T) {
	events := []usage.Event{
		event("proj_p", "gpt-4", "/a", usage.EnvProd, rollupDate.Add(-time.Second), "1", 1),     // previous day
		event("proj_p", "gpt-4", "/a", usage.EnvProd, rollupDate, "0.5", 10),                    // midnight belongs to the date
		event("proj_p", "gpt-4", "/a", usage.EnvProd, rollupDate.Add(24*time.Hour), "1", 1),     // next day
		event("proj_p", "gpt-4", "/a", usage.EnvProd, rollupDate.Add(23*time.Hour+59*time.Minute), "0.5", 10),
	}

	set := usage.Rollup(events, rollupDate)

	if len(set.Daily) != 1 {
		t.Fatalf("daily rows = %d, want 1", len(set.Daily))
	}
	if !set.Daily[0].TotalCostUSD.Equal(decimal.NewFromInt(1)) {
		t.Errorf("cost = %s, want 1 (only same-date events)", set.Daily[0].TotalCostUSD)
	}
}

func TestRollup_ExcludesUnownedEvents(t *testing.T) {
	events := []usage.Event{
		event("", "gpt-4", "/a", usage.EnvProd, rollupDate.Add(time.Hour), "1", 100),
		event("proj_p", "gpt-4", "/a", usage.EnvProd, rollupDate.Add(time.Hour), "0.1", 10),
	}

	set := usage.Rollup(events, rollupDate)

	if len(set.Daily) != 1 {
		t.Fatalf("daily rows = %d, want 1 (unowned events excluded)", len(set.Daily))
	}
	if set.Daily[0].ProjectID != "proj_p" {
		t.Errorf("project = %q, want proj_p", set.Daily[0].ProjectID)
	}
}

func TestRollup_EmptyInput(t *testing.T) {
	set := usage.Rollup(nil, rollupDate)
	if !set.Empty() {
		t.Error("rollup of no events should be empty")
	}
}

func TestRollup_Deterministic(t *testing.T) {
	events := []usage.Event{
		event("proj_b", "gpt-4", "/b", usage.EnvProd, rollupDate.Add(time.Hour), "0.2", 20),
		event("proj_a", "claude-3-haiku", "/a", usage.EnvDev, rollupDate.Add(time.Hour), "0.1", 10),
		event("proj_a", "gpt-4", "/b", usage.EnvProd, rollupDate.Add(2*time.Hour), "0.3", 30),
	}

	first := usage.Rollup(events, rollupDate)
	second := usage.Rollup(events, rollupDate)

	if !reflect.DeepEqual(first, second) {
		t.Error("two derivations of the same events differ")
	}
	if first.Daily[0].ProjectID != "proj_a" {
		t.Errorf("rows not sorted by key: first project = %q", first.Daily[0].ProjectID)
	}
}
