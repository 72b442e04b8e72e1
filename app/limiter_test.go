package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/artpar/usageledger/adapters/clock"
	"github.com/artpar/usageledger/adapters/memory"
	"github.com/artpar/usageledger/app"
	"github.com/artpar/usageledger/domain/ratelimit"
)

func newLimiter(counters *memory.CounterStore, clk *clock.Fake, limits app.Limits) *app.LimiterService {
	return app.NewLimiterService(app.LimiterDeps{
		Counters: counters,
		Clock:    clk,
	}, limits)
}

func TestLimiter_AdmitsUnderLimit(t *testing.T) {
	counters := memory.NewCounterStore()
	clk := clock.NewFake(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	svc := newLimiter(counters, clk, app.Limits{PerMinute: 60, PerDay: 5000, AIPerDay: 20})

	for i := 0; i < 60; i++ {
		d, err := svc.CheckAndAdmit(context.Background(), "proj-1", false)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("call %d denied, want admitted", i)
		}
	}
}

func TestLimiter_DeniesAtLimit(t *testing.T) {
	counters := memory.NewCounterStore()
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	clk := clock.NewFake(now)
	svc := newLimiter(counters, clk, app.Limits{PerMinute: 60, PerDay: 5000, AIPerDay: 20})

	ctx := context.Background()
	for i := 0; i < 60; i++ {
		if d, err := svc.CheckAndAdmit(ctx, "proj-1", false); err != nil || !d.Allowed {
			t.Fatalf("call %d: allowed=%v err=%v", i, d.Allowed, err)
		}
	}

	// Call 61 in the same minute is denied with the generic reason.
	d, err := svc.CheckAndAdmit(ctx, "proj-1", false)
	if err != nil {
		t.Fatalf("denied call errored: %v", err)
	}
	if d.Allowed {
		t.Fatal("call 61 admitted, want denied")
	}
	if d.Reason != ratelimit.ReasonLimitExceeded {
		t.Errorf("reason: got %q, want %q", d.Reason, ratelimit.ReasonLimitExceeded)
	}

	// The denial must not bump any counter.
	start := ratelimit.BucketStart(ratelimit.KindMinute, now)
	if got := counters.Count("proj-1", ratelimit.KindMinute, start); got != 60 {
		t.Errorf("minute counter after denial: got %d, want 60", got)
	}
	dayStart := ratelimit.BucketStart(ratelimit.KindDay, now)
	if got := counters.Count("proj-1", ratelimit.KindDay, dayStart); got != 60 {
		t.Errorf("day counter after denial: got %d, want 60", got)
	}
}

func TestLimiter_NewWindowAdmitsAgain(t *testing.T) {
	counters := memory.NewCounterStore()
	clk := clock.NewFake(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	svc := newLimiter(counters, clk, app.Limits{PerMinute: 2, PerDay: 5000, AIPerDay: 20})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if d, _ := svc.CheckAndAdmit(ctx, "proj-1", false); !d.Allowed {
			t.Fatalf("call %d denied", i)
		}
	}
	if d, _ := svc.CheckAndAdmit(ctx, "proj-1", false); d.Allowed {
		t.Fatal("third call in minute admitted, want denied")
	}

	clk.Advance(time.Minute)
	d, err := svc.CheckAndAdmit(ctx, "proj-1", false)
	if err != nil {
		t.Fatalf("after window rollover: %v", err)
	}
	if !d.Allowed {
		t.Fatal("call in fresh minute denied, want admitted")
	}
}

func TestLimiter_FeaturePoolIndependent(t *testing.T) {
	counters := memory.NewCounterStore()
	clk := clock.NewFake(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	svc := newLimiter(counters, clk, app.Limits{PerMinute: 60, PerDay: 5000, AIPerDay: 2})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if d, _ := svc.CheckAndAdmit(ctx, "proj-1", true); !d.Allowed {
			t.Fatalf("ai call %d denied", i)
		}
	}

	// The feature pool is exhausted; feature calls are denied.
	if d, _ := svc.CheckAndAdmit(ctx, "proj-1", true); d.Allowed {
		t.Fatal("third ai call admitted, want denied")
	}

	// General calls are still admitted.
	d, err := svc.CheckAndAdmit(ctx, "proj-1", false)
	if err != nil {
		t.Fatalf("general call: %v", err)
	}
	if !d.Allowed {
		t.Fatal("general call denied by exhausted feature pool")
	}
}

func TestLimiter_GenericDenialReason(t *testing.T) {
	counters := memory.NewCounterStore()
	clk := clock.NewFake(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	svc := newLimiter(counters, clk, app.Limits{PerMinute: 1, PerDay: 1, AIPerDay: 1})

	ctx := context.Background()
	if d, _ := svc.CheckAndAdmit(ctx, "proj-1", true); !d.Allowed {
		t.Fatal("first call denied")
	}

	// Whichever pool trips, the reason reads the same.
	minuteDenied, _ := svc.CheckAndAdmit(ctx, "proj-1", false)
	aiDenied, _ := svc.CheckAndAdmit(ctx, "proj-1", true)
	if minuteDenied.Allowed || aiDenied.Allowed {
		t.Fatal("expected denials")
	}
	if minuteDenied.Reason != aiDenied.Reason {
		t.Errorf("reasons differ: %q vs %q", minuteDenied.Reason, aiDenied.Reason)
	}
}

func TestLimiter_StorageFailureIsError(t *testing.T) {
	counters := memory.NewCounterStore()
	counters.FailCounts = true
	clk := clock.NewFake(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	svc := newLimiter(counters, clk, app.Limits{PerMinute: 60, PerDay: 5000, AIPerDay: 20})

	d, err := svc.CheckAndAdmit(context.Background(), "proj-1", false)
	if err == nil {
		t.Fatal("expected error from failing store")
	}
	if d.Allowed {
		t.Error("storage failure silently admitted")
	}
	if d.Reason == ratelimit.ReasonLimitExceeded {
		t.Error("storage failure reported as quota denial")
	}
}

func TestLimiter_IncrementFailureIsError(t *testing.T) {
	counters := memory.NewCounterStore()
	counters.FailIncrements = true
	clk := clock.NewFake(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	svc := newLimiter(counters, clk, app.Limits{PerMinute: 60, PerDay: 5000, AIPerDay: 20})

	if _, err := svc.CheckAndAdmit(context.Background(), "proj-1", false); err == nil {
		t.Fatal("expected error from failing increment")
	}
}

func TestLimiter_UpdateLimits(t *testing.T) {
	counters := memory.NewCounterStore()
	clk := clock.NewFake(time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC))
	svc := newLimiter(counters, clk, app.Limits{PerMinute: 1, PerDay: 5000, AIPerDay: 20})

	ctx := context.Background()
	if d, _ := svc.CheckAndAdmit(ctx, "proj-1", false); !d.Allowed {
		t.Fatal("first call denied")
	}
	if d, _ := svc.CheckAndAdmit(ctx, "proj-1", false); d.Allowed {
		t.Fatal("second call admitted under limit 1")
	}

	svc.UpdateLimits(app.Limits{PerMinute: 10, PerDay: 5000, AIPerDay: 20})
	if d, _ := svc.CheckAndAdmit(ctx, "proj-1", false); !d.Allowed {
		t.Fatal("call denied after raising the limit")
	}
}
