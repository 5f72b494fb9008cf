package port

import (
	"context"
	"time"

	"github.com/Dokus-Tech/dokus-auth/internal/core/domain"
)

// TokenRepository is the durable record of issued refresh tokens, one row per
// token. Tokens are addressed by their SHA-256 hash, never the raw value.
type TokenRepository interface {
	Create(ctx context.Context, token domain.RefreshToken) error
	GetByHash(ctx context.Context, hash string) (*domain.RefreshToken, error)
	// RevokeByHash marks a token revoked only if it is not revoked already.
	// Zero rows affected surfaces as repository.ErrNotFound so the rotator
	// can distinguish losing a race from a plain miss.
	RevokeByHash(ctx context.Context, hash string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID string, reason string) (int, error)
	DeleteExpiredOrRevoked(ctx context.Context, before time.Time) (int, error)
	ListActiveForUser(ctx context.Context, userID string) ([]domain.RefreshToken, error)
}
