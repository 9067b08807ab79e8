package rate

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryLedger_HourlyCeiling(t *testing.T) {
	ledger := NewMemoryLedger(Limits{PerHour: 3, PerDay: 10})
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := ledger.Reserve(ctx, "acct", now)
		if err != nil {
			t.Fatalf("Reserve %d failed: %v", i, err)
		}
		if !ok {
			t.Fatalf("Reserve %d denied below the ceiling", i)
		}
	}

	ok, err := ledger.Reserve(ctx, "acct", now)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if ok {
		t.Error("Reserve allowed a fourth attempt past the hourly ceiling")
	}

	counts, err := ledger.Counts(ctx, "acct", now)
	if err != nil {
		t.Fatalf("Counts failed: %v", err)
	}
	if counts.Hour != 3 {
		t.Errorf("hour count = %d, want 3 (denied reservation must not consume)", counts.Hour)
	}
	if counts.Day != 3 {
		t.Errorf("day count = %d, want 3", counts.Day)
	}

	// The next hour opens a fresh hourly bucket but the day keeps
	// accumulating.
	nextHour := now.Add(time.Hour)
	ok, err = ledger.Reserve(ctx, "acct", nextHour)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if !ok {
		t.Error("Reserve denied in a fresh hourly bucket")
	}
	counts, _ = ledger.Counts(ctx, "acct", nextHour)
	if counts.Hour != 1 || counts.Day != 4 {
		t.Errorf("counts = %+v, want hour 1 day 4", counts)
	}
}

func TestMemoryLedger_DailyCeiling(t *testing.T) {
	ledger := NewMemoryLedger(Limits{PerHour: 10, PerDay: 2})
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		// Spread the attempts over different hours so only the daily
		// ceiling constrains them.
		ok, err := ledger.Reserve(ctx, "acct", base.Add(time.Duration(i)*time.Hour))
		if err != nil || !ok {
			t.Fatalf("Reserve %d = (%v, %v), want allowed", i, ok, err)
		}
	}

	ok, err := ledger.Reserve(ctx, "acct", base.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if ok {
		t.Error("Reserve allowed an attempt past the daily ceiling")
	}

	// The next day is unconstrained.
	ok, _ = ledger.Reserve(ctx, "acct", base.AddDate(0, 0, 1))
	if !ok {
		t.Error("Reserve denied on a fresh day")
	}
}

func TestMemoryLedger_AccountsAreIndependent(t *testing.T) {
	ledger := NewMemoryLedger(Limits{PerHour: 1, PerDay: 1})
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	if ok, _ := ledger.Reserve(ctx, "a", now); !ok {
		t.Fatal("first account denied")
	}
	if ok, _ := ledger.Reserve(ctx, "b", now); !ok {
		t.Error("second account hit the first account's ceiling")
	}
}

func TestMemoryLedger_ConcurrentReservesNeverOvershoot(t *testing.T) {
	const ceiling = 5
	ledger := NewMemoryLedger(Limits{PerHour: ceiling, PerDay: 100})
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	granted := make(chan struct{}, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := ledger.Reserve(context.Background(), "acct", now)
			if err == nil && ok {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	total := 0
	for range granted {
		total++
	}
	if total != ceiling {
		t.Errorf("granted %d reservations, want exactly %d", total, ceiling)
	}
}
