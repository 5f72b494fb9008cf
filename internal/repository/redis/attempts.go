package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Dokus-Tech/dokus-auth/internal/core/port"
)

// AttemptStoreConfig defines keying and retention for the shared attempt store.
type AttemptStoreConfig struct {
	KeyPrefix string
	// TTL bounds how long an idle identity's keys survive. It should exceed
	// the attempt window plus the lockout duration.
	TTL time.Duration
}

// AttemptStore persists login failures in Redis sorted sets so that every
// node sees the same sliding window. The lockout marker lives in a plain key
// beside the set.
type AttemptStore struct {
	client *redis.Client
	cfg    AttemptStoreConfig
}

// NewAttemptStore constructs a store using the provided Redis client and config.
func NewAttemptStore(client *redis.Client, cfg AttemptStoreConfig) *AttemptStore {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "auth:attempts"
	}
	return &AttemptStore{client: client, cfg: cfg}
}

// RecordAttempt stores the failure timestamp and refreshes the key TTL.
func (s *AttemptStore) RecordAttempt(ctx context.Context, identifier string, at time.Time) error {
	key := s.attemptsKey(identifier)
	member := redis.Z{Score: float64(at.UnixNano()), Member: at.UnixNano()}

	if err := s.client.ZAdd(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("redis zadd: %w", err)
	}

	if s.cfg.TTL > 0 {
		if err := s.client.Expire(ctx, key, s.cfg.TTL).Err(); err != nil {
			return fmt.Errorf("redis expire: %w", err)
		}
	}

	return nil
}

// CountAttempts returns how many failures occurred within the window ending at
// the reference time.
func (s *AttemptStore) CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}

	key := s.attemptsKey(identifier)
	min := fmt.Sprintf("%f", float64(reference.Add(-window).UnixNano()))
	max := fmt.Sprintf("%f", float64(reference.UnixNano()))

	count, err := s.client.ZCount(ctx, key, min, max).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcount: %w", err)
	}

	return int(count), nil
}

// TrimWindow removes failures older than the window relative to the reference
// time.
func (s *AttemptStore) TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error {
	if window <= 0 {
		return errors.New("window must be positive")
	}

	key := s.attemptsKey(identifier)
	threshold := fmt.Sprintf("%f", float64(reference.Add(-window).UnixNano()))

	if err := s.client.ZRemRangeByScore(ctx, key, "-inf", threshold).Err(); err != nil {
		return fmt.Errorf("redis zremrangebyscore: %w", err)
	}

	return nil
}

// SetLockout writes the lockout expiry, letting the key lapse with the
// lockout itself.
func (s *AttemptStore) SetLockout(ctx context.Context, identifier string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}

	if err := s.client.Set(ctx, s.lockoutKey(identifier), until.UnixNano(), ttl).Err(); err != nil {
		return fmt.Errorf("redis set lockout: %w", err)
	}

	return nil
}

// GetLockout returns the lockout expiry if one is armed.
func (s *AttemptStore) GetLockout(ctx context.Context, identifier string) (time.Time, bool, error) {
	ns, err := s.client.Get(ctx, s.lockoutKey(identifier)).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis get lockout: %w", err)
	}

	return time.Unix(0, ns), true, nil
}

// Clear drops both the attempt set and the lockout marker.
func (s *AttemptStore) Clear(ctx context.Context, identifier string) error {
	if err := s.client.Del(ctx, s.attemptsKey(identifier), s.lockoutKey(identifier)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *AttemptStore) attemptsKey(identifier string) string {
	return fmt.Sprintf("%s:%s", s.cfg.KeyPrefix, identifier)
}

func (s *AttemptStore) lockoutKey(identifier string) string {
	return fmt.Sprintf("%s:lock:%s", s.cfg.KeyPrefix, identifier)
}

var _ port.AttemptStore = (*AttemptStore)(nil)
