package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"visit-tracker/internal/ratelimit"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMemoryLimiterWindow(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	l := ratelimit.NewMemoryLimiter(3, time.Minute)
	l.SetClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, _ := l.Allow(ctx, "1.2.3.4")
		if !res.Allowed || res.Remaining != 3-i {
			t.Fatalf("hit %d: unexpected result %+v", i, res)
		}
	}

	res, _ := l.Allow(ctx, "1.2.3.4")
	if res.Allowed {
		t.Fatal("expected fourth hit to be refused")
	}
	if res.ResetIn != time.Minute {
		t.Fatalf("expected reset in 1m, got %s", res.ResetIn)
	}

	if res, _ := l.Allow(ctx, "5.6.7.8"); !res.Allowed {
		t.Fatal("keys must not share a window")
	}

	now = now.Add(time.Minute)
	if res, _ := l.Allow(ctx, "1.2.3.4"); !res.Allowed || res.Remaining != 2 {
		t.Fatalf("expected fresh window, got %+v", res)
	}
}

func TestMemoryLimiterSweep(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	l := ratelimit.NewMemoryLimiter(1, time.Minute)
	l.SetClock(func() time.Time { return now })
	ctx := context.Background()

	for _, ip := range []string{"a", "b", "c"} {
		_, _ = l.Allow(ctx, ip)
	}
	if l.Size() != 3 {
		t.Fatalf("expected 3 entries, got %d", l.Size())
	}

	now = now.Add(2 * time.Minute)
	_, _ = l.Allow(ctx, "d")
	if l.Size() != 1 {
		t.Fatalf("expected expired entries to be swept, got %d", l.Size())
	}
}

func TestMemoryLimiterConcurrent(t *testing.T) {
	l := ratelimit.NewMemoryLimiter(50, time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := l.Allow(ctx, "k")
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Fatalf("expected exactly 50 allowed, got %d", allowed)
	}
}
