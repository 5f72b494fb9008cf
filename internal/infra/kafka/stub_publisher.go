package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Dokus-Tech/dokus-auth/internal/core/domain"
	"github.com/Dokus-Tech/dokus-auth/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments without a broker.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishLoginLocked logs auth.login.locked events.
func (p *StubPublisher) PublishLoginLocked(_ context.Context, event domain.LoginLockedEvent) error {
	payload := map[string]any{
		"identity_key": event.IdentityKey,
		"attempts":     event.Attempts,
		"locked_until": event.LockedUntil,
	}
	p.logEvent("auth.login.locked", "", time.Now().UTC(), payload)
	return nil
}

// PublishTokenReuseDetected logs auth.token.reuse_detected events.
func (p *StubPublisher) PublishTokenReuseDetected(_ context.Context, event domain.TokenReuseDetectedEvent) error {
	payload := map[string]any{
		"user_id":        event.UserID,
		"token_hash":     event.TokenHash,
		"reused_at":      event.ReusedAt,
		"tokens_revoked": event.TokensRevoked,
	}
	p.logEvent("auth.token.reuse_detected", event.UserID, event.ReusedAt, payload)
	return nil
}

// PublishSessionsRevoked logs auth.sessions.revoked events.
func (p *StubPublisher) PublishSessionsRevoked(_ context.Context, event domain.SessionsRevokedEvent) error {
	payload := map[string]any{
		"user_id":    event.UserID,
		"count":      event.Count,
		"reason":     event.Reason,
		"revoked_at": event.RevokedAt,
	}
	p.logEvent("auth.sessions.revoked", event.UserID, event.RevokedAt, payload)
	return nil
}

// PublishAccountDeactivated logs auth.account.deactivated events.
func (p *StubPublisher) PublishAccountDeactivated(_ context.Context, event domain.AccountDeactivatedEvent) error {
	payload := map[string]any{
		"user_id":        event.UserID,
		"reason":         event.Reason,
		"deactivated_at": event.DeactivatedAt,
	}
	p.logEvent("auth.account.deactivated", event.UserID, event.DeactivatedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
