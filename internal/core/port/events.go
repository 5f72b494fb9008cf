package port

import (
	"context"

	"github.com/Dokus-Tech/dokus-auth/internal/core/domain"
)

// EventPublisher publishes security-relevant domain events to the message bus.
type EventPublisher interface {
	PublishLoginLocked(ctx context.Context, event domain.LoginLockedEvent) error
	PublishTokenReuseDetected(ctx context.Context, event domain.TokenReuseDetectedEvent) error
	PublishSessionsRevoked(ctx context.Context, event domain.SessionsRevokedEvent) error
	PublishAccountDeactivated(ctx context.Context, event domain.AccountDeactivatedEvent) error
}
