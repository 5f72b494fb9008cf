// Package limiter throttles repeated failed login attempts per identity.
package limiter

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Dokus-Tech/dokus-auth/internal/core/domain"
	"github.com/Dokus-Tech/dokus-auth/internal/core/port"
	"github.com/Dokus-Tech/dokus-auth/internal/infra/logger"
)

// Config defines the sliding-window throttle parameters.
type Config struct {
	MaxAttempts     int
	AttemptWindow   time.Duration
	LockoutDuration time.Duration
	SweepInterval   time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.AttemptWindow <= 0 {
		c.AttemptWindow = 15 * time.Minute
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = 15 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Hour
	}
	return c
}

// MemoryThrottle tracks failed logins per normalized identity in process
// memory. State is valid for a single node only; multi-node deployments use
// the shared-store throttle instead.
type MemoryThrottle struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*domain.AttemptWindow

	sweepOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// NewMemoryThrottle constructs the in-memory throttle. Call Start to launch
// the eviction sweep and Stop at shutdown.
func NewMemoryThrottle(cfg Config, log *zap.Logger) *MemoryThrottle {
	if log == nil {
		log = zap.NewNop()
	}

	return &MemoryThrottle{
		cfg:     cfg.withDefaults(),
		logger:  log,
		now:     time.Now,
		entries: make(map[string]*domain.AttemptWindow),
		done:    make(chan struct{}),
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (t *MemoryThrottle) WithClock(now func() time.Time) *MemoryThrottle {
	if now != nil {
		t.now = now
	}
	return t
}

// Check reports whether the identity is locked out and, if so, how long the
// caller must wait. It must run before any credential verification.
func (t *MemoryThrottle) Check(_ context.Context, identity string) (bool, time.Duration, error) {
	key := domain.NormalizeIdentity(identity)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[key]
	if !ok || !entry.IsLocked(now) {
		return false, 0, nil
	}

	return true, entry.RetryAfter(now), nil
}

// RecordFailure appends a failure timestamp, prunes the window, and arms the
// lockout once the pruned count reaches the threshold. A failure landing
// during an active lockout still appends (the window stays truthful) but only
// moves lockedUntil forward when recomputation yields a later instant.
func (t *MemoryThrottle) RecordFailure(_ context.Context, identity string) error {
	key := domain.NormalizeIdentity(identity)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[key]
	if !ok {
		entry = &domain.AttemptWindow{IdentityKey: key}
		t.entries[key] = entry
	}

	wasLocked := entry.IsLocked(now)
	entry.RecordFailure(now, t.cfg.AttemptWindow, t.cfg.LockoutDuration, t.cfg.MaxAttempts)

	if !wasLocked && entry.IsLocked(now) {
		t.logger.Warn("identity locked out after repeated login failures",
			zap.String("identity", logger.MaskEmail(key)),
			zap.Int("attempts", len(entry.Failures)),
			zap.Time("locked_until", *entry.LockedUntil),
		)
	}

	return nil
}

// Reset clears the identity's entry entirely (called on successful login).
func (t *MemoryThrottle) Reset(_ context.Context, identity string) error {
	key := domain.NormalizeIdentity(identity)

	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, key)
	return nil
}

// IsLocked is a read-only diagnostic accounting for lazy pruning.
func (t *MemoryThrottle) IsLocked(_ context.Context, identity string) (bool, error) {
	key := domain.NormalizeIdentity(identity)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[key]
	if !ok {
		return false, nil
	}

	return entry.IsLocked(now), nil
}

// AttemptCount reports the failure count inside the current window.
func (t *MemoryThrottle) AttemptCount(_ context.Context, identity string) (int, error) {
	key := domain.NormalizeIdentity(identity)
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[key]
	if !ok {
		return 0, nil
	}

	entry.Prune(t.cfg.AttemptWindow, now)
	return len(entry.Failures), nil
}

// Start launches the periodic eviction sweep. Safe to call once; subsequent
// calls are no-ops.
func (t *MemoryThrottle) Start() {
	t.sweepOnce.Do(func() {
		go t.sweepLoop()
	})
}

// Stop terminates the sweep goroutine.
func (t *MemoryThrottle) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)
	})
}

func (t *MemoryThrottle) sweepLoop() {
	ticker := time.NewTicker(t.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			evicted := t.Sweep()
			if evicted > 0 {
				t.logger.Debug("evicted stale login attempt entries", zap.Int("count", evicted))
			}
		case <-t.done:
			return
		}
	}
}

// Sweep evicts entries whose lockout has lapsed and whose failures have all
// aged out of the window. It holds the same lock as the mutating operations,
// so an entry mid-update is never removed underneath its writer.
func (t *MemoryThrottle) Sweep() int {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	evicted := 0
	for key, entry := range t.entries {
		if entry.Stale(t.cfg.AttemptWindow, now) {
			delete(t.entries, key)
			evicted++
		}
	}

	return evicted
}

var _ port.LoginThrottle = (*MemoryThrottle)(nil)
