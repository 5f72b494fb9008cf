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
	"github.com/Dokus-Tech/dokus-auth/internal/infra/config"
	"github.com/Dokus-Tech/dokus-auth/internal/infra/logger"
	"github.com/Dokus-Tech/dokus-auth/internal/infra/security"
	"github.com/Dokus-Tech/dokus-auth/internal/repository"
)

// ClientInfo carries request metadata persisted alongside issued tokens.
type ClientInfo struct {
	ClientID  *string
	IP        *string
	UserAgent *string
}

// LoginResult is the successful outcome of a login or refresh.
type LoginResult struct {
	Account domain.Account
	Tokens  domain.TokenPair
}

// AuthOrchestrator composes the rate limiter, credential store, token issuer
// and token repository into the login, refresh, logout, bulk-revocation and
// deactivation workflows. Step ordering inside each workflow is part of the
// contract: the lockout check runs before any credential work, account state
// checks precede every mutation, and the credential-store flip precedes token
// revocation during deactivation.
type AuthOrchestrator struct {
	cfg      *config.AppConfig
	accounts port.CredentialStore
	tokens   port.TokenRepository
	throttle port.LoginThrottle
	issuer   port.TokenIssuer
	rotator  *TokenRotator
	events   port.EventPublisher
	log      *zap.Logger
	now      func() time.Time
}

// NewAuthOrchestrator constructs an AuthOrchestrator instance.
func NewAuthOrchestrator(
	cfg *config.AppConfig,
	accounts port.CredentialStore,
	tokens port.TokenRepository,
	throttle port.LoginThrottle,
	issuer port.TokenIssuer,
	rotator *TokenRotator,
	events port.EventPublisher,
	log *zap.Logger,
) *AuthOrchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthOrchestrator{
		cfg:      cfg,
		accounts: accounts,
		tokens:   tokens,
		throttle: throttle,
		issuer:   issuer,
		rotator:  rotator,
		events:   events,
		log:      log,
		now:      time.Now,
	}
}

// WithClock overrides the orchestrator's time source.
func (s *AuthOrchestrator) WithClock(now func() time.Time) *AuthOrchestrator {
	if now != nil {
		s.now = now
	}
	return s
}

// Login authenticates an email/password pair. The rate-limit check runs
// first so a locked identity costs no credential verification; an inactive
// account is rejected after the password matched and does not count as a
// rate-limit failure.
func (s *AuthOrchestrator) Login(ctx context.Context, email, password string, client ClientInfo) (*LoginResult, error) {
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}

	identity := domain.NormalizeIdentity(email)

	locked, retryAfter, err := s.throttle.Check(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("check login attempts: %w", err)
	}
	if locked {
		return nil, &TooManyAttemptsError{RetryAfter: retryAfter}
	}

	account, err := s.accounts.VerifyCredentials(ctx, identity, password)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrPasswordMismatch) {
			s.recordFailure(ctx, identity, client)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("verify credentials: %w", err)
	}

	if !account.IsActive {
		s.log.Info("login rejected for inactive account",
			zap.String("email", logger.MaskEmail(identity)),
			zap.String("user_id", account.ID),
		)
		return nil, ErrAccountInactive
	}

	if err := s.throttle.Reset(ctx, identity); err != nil {
		return nil, fmt.Errorf("reset login attempts: %w", err)
	}

	result, err := s.issueTokens(ctx, account, client)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.RecordLogin(ctx, account.ID, s.now().UTC()); err != nil {
		s.log.Warn("record last login failed",
			zap.String("user_id", account.ID),
			zap.Error(err),
		)
	}

	return result, nil
}

// Refresh rotates the presented refresh token and mints a replacement pair.
// Every rotation failure collapses to ErrInvalidRefreshToken toward the
// caller; the distinction between missing, expired and reused lives in logs
// and events only.
func (s *AuthOrchestrator) Refresh(ctx context.Context, rawToken string, client ClientInfo) (*LoginResult, error) {
	if rawToken == "" {
		return nil, ErrInvalidRefreshToken
	}

	rotated, err := s.rotator.Rotate(ctx, rawToken)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRefreshToken),
			errors.Is(err, ErrExpiredRefreshToken),
			errors.Is(err, ErrTokenAlreadyRevoked):
			s.log.Info("refresh token rejected", zap.Error(err))
			return nil, ErrInvalidRefreshToken
		default:
			return nil, fmt.Errorf("rotate refresh token: %w", err)
		}
	}

	account, err := s.accounts.GetByID(ctx, rotated.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warn("rotated token references missing account",
				zap.String("user_id", rotated.UserID),
			)
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if !account.IsActive {
		return nil, ErrAccountInactive
	}

	return s.issueTokens(ctx, account, client)
}

// Logout revokes the presented refresh token. A token that is already gone
// or already revoked still counts as a successful logout.
func (s *AuthOrchestrator) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}

	hash := security.HashToken(rawToken)
	if err := s.tokens.RevokeByHash(ctx, hash, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Debug("logout for unknown or already revoked token",
				zap.String("token_digest", logger.TokenDigest(hash)),
			)
			return nil
		}
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	return nil
}

// RevokeAllSessions revokes every active refresh token for the user, used
// after a password reset or detected compromise. Returns how many tokens
// were revoked.
func (s *AuthOrchestrator) RevokeAllSessions(ctx context.Context, userID, reason string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("user id is required")
	}
	if reason == "" {
		reason = "manual_revoke"
	}

	count, err := s.tokens.RevokeAllForUser(ctx, userID, reason)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}

	s.log.Info("revoked all sessions",
		zap.String("user_id", userID),
		zap.Int("count", count),
		zap.String("reason", reason),
	)

	s.publishSessionsRevoked(ctx, userID, count, reason)

	return count, nil
}

// Deactivate flips the account inactive and then revokes its sessions. The
// account-state change is authoritative: a revocation failure afterwards is
// logged and swallowed, never rolled back. An orphaned token that survives
// still dies on its next refresh because Refresh re-checks the active flag.
func (s *AuthOrchestrator) Deactivate(ctx context.Context, userID, reason string) error {
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	if !account.IsActive {
		return ErrAccountInactive
	}

	if err := s.accounts.SetActive(ctx, userID, false, reason); err != nil {
		return fmt.Errorf("deactivate account: %w", err)
	}

	count, err := s.tokens.RevokeAllForUser(ctx, userID, "account_deactivated")
	if err != nil {
		s.log.Error("session revocation after deactivation failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		count = 0
	}

	s.log.Info("account deactivated",
		zap.String("user_id", userID),
		zap.Int("tokens_revoked", count),
	)

	if s.events != nil {
		event := domain.AccountDeactivatedEvent{
			EventID:       uuid.NewString(),
			UserID:        userID,
			Reason:        reason,
			DeactivatedAt: s.now().UTC(),
		}
		if err := s.events.PublishAccountDeactivated(ctx, event); err != nil {
			s.log.Error("publish account deactivated event failed", zap.Error(err))
		}
	}

	return nil
}

// ListSessions returns the user's active refresh tokens for session display.
func (s *AuthOrchestrator) ListSessions(ctx context.Context, userID string) ([]domain.RefreshToken, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	sessions, err := s.tokens.ListActiveForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	return sessions, nil
}

// issueTokens mints a fresh pair and persists the refresh half. A persist
// failure fails the whole operation: tokens the store never saw cannot be
// rotated later and must not reach the caller.
func (s *AuthOrchestrator) issueTokens(ctx context.Context, account *domain.Account, client ClientInfo) (*LoginResult, error) {
	principal := port.Principal{
		UserID:   account.ID,
		TenantID: account.TenantID,
		Roles:    account.Roles,
	}

	refreshTTL := s.cfg.JWT.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = 168 * time.Hour
	}

	pair, err := s.issuer.Issue(ctx, principal, refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}

	now := s.now().UTC()
	record := domain.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    account.ID,
		TokenHash: security.HashToken(pair.RefreshToken),
		ClientID:  client.ClientID,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		CreatedAt: now,
		ExpiresAt: pair.RefreshExpiresAt,
	}

	if err := s.tokens.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("save refresh token: %w", err)
	}

	sanitized := *account
	sanitized.PasswordHash = ""

	return &LoginResult{Account: sanitized, Tokens: pair}, nil
}

// recordFailure appends a failed attempt and publishes the lockout event when
// this failure armed the lockout.
func (s *AuthOrchestrator) recordFailure(ctx context.Context, identity string, client ClientInfo) {
	if err := s.throttle.RecordFailure(ctx, identity); err != nil {
		s.log.Error("record failed login", zap.String("email", logger.MaskEmail(identity)), zap.Error(err))
		return
	}

	locked, retryAfter, err := s.throttle.Check(ctx, identity)
	if err != nil || !locked {
		return
	}

	attempts, err := s.throttle.AttemptCount(ctx, identity)
	if err != nil {
		attempts = 0
	}

	s.log.Warn("identity locked out after repeated failures",
		zap.String("email", logger.MaskEmail(identity)),
		zap.Int("attempts", attempts),
		zap.Duration("retry_after", retryAfter),
	)

	if s.events == nil {
		return
	}

	event := domain.LoginLockedEvent{
		EventID:     uuid.NewString(),
		IdentityKey: identity,
		Attempts:    attempts,
		LockedUntil: s.now().UTC().Add(retryAfter),
		IPAddress:   client.IP,
	}
	if err := s.events.PublishLoginLocked(ctx, event); err != nil {
		s.log.Error("publish login locked event failed", zap.Error(err))
	}
}

func (s *AuthOrchestrator) publishSessionsRevoked(ctx context.Context, userID string, count int, reason string) {
	if s.events == nil {
		return
	}

	event := domain.SessionsRevokedEvent{
		EventID:   uuid.NewString(),
		UserID:    userID,
		Count:     count,
		Reason:    reason,
		RevokedAt: s.now().UTC(),
	}
	if err := s.events.PublishSessionsRevoked(ctx, event); err != nil {
		s.log.Error("publish sessions revoked event failed", zap.Error(err))
	}
}
