package domain

import "time"

// AttemptWindow tracks timestamped login failures and a lockout expiry for one
// normalized identity. It is a pure value owned by the limiter; all methods
// assume the caller holds whatever lock guards the enclosing map.
type AttemptWindow struct {
	IdentityKey string
	Failures    []time.Time
	LockedUntil *time.Time
}

// Prune drops failures older than window relative to now. Pruning is lazy: it
// runs at read time rather than on a timer, so Failures never influences a
// decision with stale entries.
func (w *AttemptWindow) Prune(window time.Duration, now time.Time) {
	cutoff := now.Add(-window)
	kept := w.Failures[:0]
	for _, at := range w.Failures {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	w.Failures = kept
}

// RecordFailure appends a failure and, once the pruned count reaches
// maxAttempts, arms the lockout. An already-armed lockout only moves forward,
// never backward.
func (w *AttemptWindow) RecordFailure(now time.Time, window, lockout time.Duration, maxAttempts int) {
	w.Prune(window, now)
	w.Failures = append(w.Failures, now)

	if len(w.Failures) < maxAttempts {
		return
	}

	until := now.Add(lockout)
	if w.LockedUntil == nil || until.After(*w.LockedUntil) {
		w.LockedUntil = &until
	}
}

// IsLocked reports whether the lockout is still in force at now.
func (w *AttemptWindow) IsLocked(now time.Time) bool {
	return w.LockedUntil != nil && now.Before(*w.LockedUntil)
}

// RetryAfter returns the remaining lockout duration, never negative.
func (w *AttemptWindow) RetryAfter(now time.Time) time.Duration {
	if w.LockedUntil == nil {
		return 0
	}
	remaining := w.LockedUntil.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Stale reports whether the entry can be evicted: the lockout has lapsed and
// every recorded failure has aged out of the window.
func (w *AttemptWindow) Stale(window time.Duration, now time.Time) bool {
	if w.IsLocked(now) {
		return false
	}
	cutoff := now.Add(-window)
	for _, at := range w.Failures {
		if at.After(cutoff) {
			return false
		}
	}
	return true
}
