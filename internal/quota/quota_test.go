package quota

import (
	"context"
	"sync"
	"testing"

	"github.com/yoockh/yoocare/internal/utils"
)

func TestTotalLimitIsRatioOfSum(t *testing.T) {
	m := NewManager(NewMemoryStore(), DefaultCapacities(), DefaultUtilization)
	// 50+250+1000+200+200+14400 = 16100
	if got, want := m.TotalLimit(), 12880; got != want {
		t.Fatalf("TotalLimit() = %d, want %d", got, want)
	}
}

func TestReserveStopsAtModelCapacity(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), map[string]int{"gemini-2.5-pro": 2, "gemma-3n-e2b-it": 100}, 0.8)

	for i := 0; i < 2; i++ {
		if err := m.Reserve(ctx, "gemini-2.5-pro"); err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
	}
	err := m.Reserve(ctx, "gemini-2.5-pro")
	if !utils.IsCode(err, utils.CodeQuotaExceeded) {
		t.Fatalf("err = %v, want QuotaExceeded", err)
	}
	// other models are unaffected
	if err := m.Reserve(ctx, "gemma-3n-e2b-it"); err != nil {
		t.Fatalf("reserve other model: %v", err)
	}
}

func TestReserveStopsAtCombinedCeiling(t *testing.T) {
	ctx := context.Background()
	// total = int(10 * 0.5) = 5
	m := NewManager(NewMemoryStore(), map[string]int{"a": 5, "b": 5}, 0.5)

	for i := 0; i < 3; i++ {
		if err := m.Reserve(ctx, "a"); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := m.Reserve(ctx, "b"); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.Reserve(ctx, "b"); !utils.IsCode(err, utils.CodeQuotaExceeded) {
		t.Fatalf("err = %v, want QuotaExceeded", err)
	}

	u, err := m.Usage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if u.Total != 5 || u.Models["a"] != 3 || u.Models["b"] != 2 {
		t.Fatalf("usage = %+v", u)
	}
}

func TestUnknownModelRejected(t *testing.T) {
	m := NewManager(NewMemoryStore(), DefaultCapacities(), DefaultUtilization)
	if err := m.Reserve(context.Background(), "gpt-unknown"); !utils.IsCode(err, utils.CodeQuotaExceeded) {
		t.Fatalf("err = %v, want QuotaExceeded", err)
	}
}

func TestConcurrentReserveNeverExceedsCapacity(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), map[string]int{"m": 50, "filler": 1000}, 1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Reserve(ctx, "m") == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if granted != 50 {
		t.Fatalf("granted = %d, want 50", granted)
	}
}

func TestMemoryStoreReset(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	m := NewManager(s, map[string]int{"m": 1}, 1)
	if err := m.Reserve(ctx, "m"); err != nil {
		t.Fatal(err)
	}
	s.Reset()
	if err := m.Reserve(ctx, "m"); err != nil {
		t.Fatalf("after reset: %v", err)
	}
}

func TestParseCapacities(t *testing.T) {
	caps, err := ParseCapacities("gemini-2.5-pro=50, gemma-3n-e2b-it = 14400")
	if err != nil {
		t.Fatal(err)
	}
	if caps["gemini-2.5-pro"] != 50 || caps["gemma-3n-e2b-it"] != 14400 {
		t.Fatalf("caps = %v", caps)
	}
	if _, err := ParseCapacities("broken"); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("err = %v", err)
	}
}
