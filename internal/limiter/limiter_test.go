package limiter

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func newTestThrottle(t *testing.T, start time.Time) (*MemoryThrottle, *time.Time) {
	t.Helper()

	now := start
	throttle := NewMemoryThrottle(Config{
		MaxAttempts:     5,
		AttemptWindow:   15 * time.Minute,
		LockoutDuration: 15 * time.Minute,
	}, zaptest.NewLogger(t)).WithClock(func() time.Time { return now })

	return throttle, &now
}

func TestLockoutAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	throttle, _ := newTestThrottle(t, time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))

	for i := 0; i < 4; i++ {
		if err := throttle.RecordFailure(ctx, "User@Example.com"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
		locked, _, err := throttle.Check(ctx, "user@example.com")
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		if locked {
			t.Fatalf("locked after %d failures", i+1)
		}
	}

	if err := throttle.RecordFailure(ctx, "user@example.com"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	locked, retryAfter, err := throttle.Check(ctx, "USER@example.com")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !locked {
		t.Fatal("expected lockout after 5 failures")
	}
	if retryAfter != 15*time.Minute {
		t.Fatalf("unexpected retry-after: %v", retryAfter)
	}
}

func TestLockoutExpires(t *testing.T) {
	ctx := context.Background()
	throttle, now := newTestThrottle(t, time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))

	for i := 0; i < 5; i++ {
		if err := throttle.RecordFailure(ctx, "user@example.com"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}

	*now = now.Add(15*time.Minute + time.Second)

	locked, _, err := throttle.Check(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if locked {
		t.Fatal("expected lockout to lapse after lockout duration")
	}

	isLocked, err := throttle.IsLocked(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("IsLocked: %v", err)
	}
	if isLocked {
		t.Fatal("IsLocked must report unlocked once the lockout lapsed, swept or not")
	}
}

func TestSlidingWindowDropsOldFailures(t *testing.T) {
	ctx := context.Background()
	throttle, now := newTestThrottle(t, time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))

	// Four failures, then the window slides past them.
	for i := 0; i < 4; i++ {
		if err := throttle.RecordFailure(ctx, "user@example.com"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}

	*now = now.Add(16 * time.Minute)

	// A failure from 14 minutes ago would still count; these aged out.
	count, err := throttle.AttemptCount(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("AttemptCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 attempts inside window, got %d", count)
	}

	if err := throttle.RecordFailure(ctx, "user@example.com"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	locked, _, err := throttle.Check(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if locked {
		t.Fatal("stale failures must not contribute to lockout")
	}
}

func TestRecentFailureStillCounts(t *testing.T) {
	ctx := context.Background()
	throttle, now := newTestThrottle(t, time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))

	if err := throttle.RecordFailure(ctx, "user@example.com"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	*now = now.Add(14 * time.Minute)

	for i := 0; i < 4; i++ {
		if err := throttle.RecordFailure(ctx, "user@example.com"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}

	locked, _, err := throttle.Check(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !locked {
		t.Fatal("failure from 14 minutes ago must still count toward the window")
	}
}

func TestResetClearsEntry(t *testing.T) {
	ctx := context.Background()
	throttle, _ := newTestThrottle(t, time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))

	for i := 0; i < 5; i++ {
		if err := throttle.RecordFailure(ctx, "user@example.com"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}

	if err := throttle.Reset(ctx, "user@example.com"); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	locked, _, err := throttle.Check(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if locked {
		t.Fatal("Check must succeed immediately after Reset")
	}

	count, err := throttle.AttemptCount(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("AttemptCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 attempts after reset, got %d", count)
	}
}

func TestLockoutIsMonotonic(t *testing.T) {
	ctx := context.Background()
	throttle, now := newTestThrottle(t, time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))

	for i := 0; i < 5; i++ {
		if err := throttle.RecordFailure(ctx, "user@example.com"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}

	_, first, err := throttle.Check(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	// A failure during the lockout appends and recomputes; the new expiry is
	// later, so the lockout extends.
	*now = now.Add(5 * time.Minute)
	if err := throttle.RecordFailure(ctx, "user@example.com"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	_, second, err := throttle.Check(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}

	if second <= first-5*time.Minute {
		t.Fatalf("lockout moved backward: first=%v second=%v", first, second)
	}
}

func TestSweepEvictsOnlyStaleEntries(t *testing.T) {
	ctx := context.Background()
	throttle, now := newTestThrottle(t, time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))

	if err := throttle.RecordFailure(ctx, "stale@example.com"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	*now = now.Add(20 * time.Minute)

	if err := throttle.RecordFailure(ctx, "fresh@example.com"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	if evicted := throttle.Sweep(); evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}

	count, err := throttle.AttemptCount(ctx, "fresh@example.com")
	if err != nil {
		t.Fatalf("AttemptCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("fresh entry must survive the sweep, got count %d", count)
	}
}

func TestConcurrentFailuresAreNotLost(t *testing.T) {
	ctx := context.Background()
	throttle := NewMemoryThrottle(Config{
		MaxAttempts:     100,
		AttemptWindow:   15 * time.Minute,
		LockoutDuration: 15 * time.Minute,
	}, zaptest.NewLogger(t))

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_ = throttle.RecordFailure(ctx, "user@example.com")
		}()
	}
	wg.Wait()

	count, err := throttle.AttemptCount(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("AttemptCount: %v", err)
	}
	if count != workers {
		t.Fatalf("lost updates: expected %d attempts, got %d", workers, count)
	}
}
