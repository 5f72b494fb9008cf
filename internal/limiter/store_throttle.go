package limiter

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Dokus-Tech/dokus-auth/internal/core/domain"
	"github.com/Dokus-Tech/dokus-auth/internal/core/port"
)

// StoreThrottle enforces the same sliding-window lockout policy against a
// shared attempt store, making the limit effective across nodes. Atomicity of
// individual store operations is the store's responsibility.
type StoreThrottle struct {
	store  port.AttemptStore
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewStoreThrottle constructs a throttle backed by a shared attempt store.
func NewStoreThrottle(store port.AttemptStore, cfg Config, log *zap.Logger) *StoreThrottle {
	if log == nil {
		log = zap.NewNop()
	}

	return &StoreThrottle{
		store:  store,
		cfg:    cfg.withDefaults(),
		logger: log,
		now:    time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (t *StoreThrottle) WithClock(now func() time.Time) *StoreThrottle {
	if now != nil {
		t.now = now
	}
	return t
}

// Check consults the stored lockout marker.
func (t *StoreThrottle) Check(ctx context.Context, identity string) (bool, time.Duration, error) {
	key := domain.NormalizeIdentity(identity)
	now := t.now()

	until, ok, err := t.store.GetLockout(ctx, key)
	if err != nil {
		return false, 0, fmt.Errorf("get lockout: %w", err)
	}
	if !ok || !now.Before(until) {
		return false, 0, nil
	}

	return true, until.Sub(now), nil
}

// RecordFailure appends an attempt and arms the lockout when the trimmed
// window reaches the threshold. The lockout marker only moves forward.
func (t *StoreThrottle) RecordFailure(ctx context.Context, identity string) error {
	key := domain.NormalizeIdentity(identity)
	now := t.now()

	if err := t.store.RecordAttempt(ctx, key, now); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	if err := t.store.TrimWindow(ctx, key, t.cfg.AttemptWindow, now); err != nil {
		return fmt.Errorf("trim window: %w", err)
	}

	count, err := t.store.CountAttempts(ctx, key, t.cfg.AttemptWindow, now)
	if err != nil {
		return fmt.Errorf("count attempts: %w", err)
	}
	if count < t.cfg.MaxAttempts {
		return nil
	}

	until := now.Add(t.cfg.LockoutDuration)
	existing, ok, err := t.store.GetLockout(ctx, key)
	if err != nil {
		return fmt.Errorf("get lockout: %w", err)
	}
	if ok && existing.After(until) {
		return nil
	}

	if err := t.store.SetLockout(ctx, key, until); err != nil {
		return fmt.Errorf("set lockout: %w", err)
	}

	return nil
}

// Reset clears all state for the identity.
func (t *StoreThrottle) Reset(ctx context.Context, identity string) error {
	if err := t.store.Clear(ctx, domain.NormalizeIdentity(identity)); err != nil {
		return fmt.Errorf("clear attempts: %w", err)
	}
	return nil
}

// IsLocked is a read-only diagnostic.
func (t *StoreThrottle) IsLocked(ctx context.Context, identity string) (bool, error) {
	locked, _, err := t.Check(ctx, identity)
	return locked, err
}

// AttemptCount reports the failure count inside the current window.
func (t *StoreThrottle) AttemptCount(ctx context.Context, identity string) (int, error) {
	key := domain.NormalizeIdentity(identity)

	count, err := t.store.CountAttempts(ctx, key, t.cfg.AttemptWindow, t.now())
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}

	return count, nil
}

var _ port.LoginThrottle = (*StoreThrottle)(nil)
