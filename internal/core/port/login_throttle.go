package port

import (
	"context"
	"time"
)

// LoginThrottle guards credential verification against brute-force guessing,
// keyed by normalized identity. Implementations must make each mutation for a
// given identity atomic under concurrent callers.
type LoginThrottle interface {
	// Check returns (locked, retryAfter). It must run before any credential
	// work so a locked identity costs no verification effort.
	Check(ctx context.Context, identity string) (bool, time.Duration, error)
	RecordFailure(ctx context.Context, identity string) error
	Reset(ctx context.Context, identity string) error
	// IsLocked and AttemptCount are read-only diagnostics and must account
	// for lazy pruning: a lapsed lockout reads as unlocked even if the entry
	// has not been swept yet.
	IsLocked(ctx context.Context, identity string) (bool, error)
	AttemptCount(ctx context.Context, identity string) (int, error)
}

// AttemptStore defines the persistence operations a shared-store throttle
// needs for sliding-window counting (multi-node deployments; the in-memory
// limiter does not use it).
type AttemptStore interface {
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	SetLockout(ctx context.Context, identifier string, until time.Time) error
	GetLockout(ctx context.Context, identifier string) (time.Time, bool, error)
	Clear(ctx context.Context, identifier string) error
}
