package usecase

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Dokus-Tech/dokus-auth/internal/core/port"
)

// TokenCleanup periodically deletes refresh token rows that can no longer be
// presented: expired, or revoked. Bounds table growth; correctness never
// depends on it running.
type TokenCleanup struct {
	tokens   port.TokenRepository
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// NewTokenCleanup constructs a cleanup job. A non-positive interval defaults
// to daily.
func NewTokenCleanup(tokens port.TokenRepository, interval time.Duration, log *zap.Logger) *TokenCleanup {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenCleanup{
		tokens:   tokens,
		interval: interval,
		log:      log,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (c *TokenCleanup) Start() {
	c.startOnce.Do(func() {
		go c.loop()
	})
}

// Stop terminates the sweep loop. Safe to call more than once.
func (c *TokenCleanup) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}

func (c *TokenCleanup) loop() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Run(context.Background())
		case <-c.done:
			return
		}
	}
}

// Run performs a single sweep and returns how many rows were removed.
func (c *TokenCleanup) Run(ctx context.Context) int {
	deleted, err := c.tokens.DeleteExpiredOrRevoked(ctx, c.now().UTC())
	if err != nil {
		c.log.Error("token cleanup sweep failed", zap.Error(err))
		return 0
	}

	if deleted > 0 {
		c.log.Info("token cleanup sweep completed", zap.Int("deleted", deleted))
	}

	return deleted
}
