package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Dokus-Tech/dokus-auth/internal/core/domain"
	"github.com/Dokus-Tech/dokus-auth/internal/core/port"
	"github.com/Dokus-Tech/dokus-auth/internal/infra/logger"
	"github.com/Dokus-Tech/dokus-auth/internal/infra/security"
	"github.com/Dokus-Tech/dokus-auth/internal/repository"
)

// TokenRotator implements the validate-and-rotate protocol: a presented
// refresh token is checked and revoked in one conditional update, so that of
// two concurrent presentations exactly one wins.
type TokenRotator struct {
	tokens port.TokenRepository
	events port.EventPublisher
	log    *zap.Logger
	now    func() time.Time
}

// NewTokenRotator constructs a TokenRotator instance.
func NewTokenRotator(tokens port.TokenRepository, events port.EventPublisher, log *zap.Logger) *TokenRotator {
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenRotator{
		tokens: tokens,
		events: events,
		log:    log,
		now:    time.Now,
	}
}

// WithClock overrides the rotator's time source.
func (r *TokenRotator) WithClock(now func() time.Time) *TokenRotator {
	if now != nil {
		r.now = now
	}
	return r
}

// Rotate validates the presented raw refresh token and revokes it. Exactly
// one caller per token ever gets the record back; every later presentation
// fails. A revoked token showing up again is treated as reuse and triggers
// defensive revocation of the user's remaining sessions.
func (r *TokenRotator) Rotate(ctx context.Context, rawToken string) (*domain.RefreshToken, error) {
	hash := security.HashToken(rawToken)
	now := r.now().UTC()

	token, err := r.tokens.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}

	if token.IsRevoked() {
		r.handleReuse(ctx, token, now)
		return nil, ErrTokenAlreadyRevoked
	}

	if token.IsExpired(now) {
		return nil, ErrExpiredRefreshToken
	}

	// Conditional revoke: zero rows means another rotation won the race
	// between our read and this write, which is reuse by definition.
	if err := r.tokens.RevokeByHash(ctx, hash, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.handleReuse(ctx, token, now)
			return nil, ErrTokenAlreadyRevoked
		}
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}

	return token, nil
}

// handleReuse is the response to a revoked token being presented again: the
// strongest theft signal this service observes. All remaining sessions for
// the owner are revoked and the anomaly is published.
func (r *TokenRotator) handleReuse(ctx context.Context, token *domain.RefreshToken, at time.Time) {
	revoked, err := r.tokens.RevokeAllForUser(ctx, token.UserID, "token_reuse_detected")
	if err != nil {
		r.log.Error("defensive revocation after token reuse failed",
			zap.String("user_id", token.UserID),
			zap.String("token_digest", logger.TokenDigest(token.TokenHash)),
			zap.Error(err),
		)
		revoked = 0
	}

	r.log.Warn("revoked refresh token presented again",
		zap.String("user_id", token.UserID),
		zap.String("token_digest", logger.TokenDigest(token.TokenHash)),
		zap.Int("tokens_revoked", revoked),
	)

	if r.events == nil {
		return
	}

	event := domain.TokenReuseDetectedEvent{
		EventID:       uuid.NewString(),
		UserID:        token.UserID,
		TokenHash:     token.TokenHash,
		ReusedAt:      at,
		TokensRevoked: revoked,
		IPAddress:     token.IP,
		UserAgent:     token.UserAgent,
	}
	if err := r.events.PublishTokenReuseDetected(ctx, event); err != nil {
		r.log.Error("publish token reuse event failed", zap.Error(err))
	}
}
