package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Dokus-Tech/dokus-auth/internal/core/domain"
	"github.com/Dokus-Tech/dokus-auth/internal/core/port"
	"github.com/Dokus-Tech/dokus-auth/internal/repository"
)

type stubCredentialStore struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
	password string

	setActiveErr   error
	lastLoginStamp time.Time
}

func newStubCredentialStore(password string, accounts ...*domain.Account) *stubCredentialStore {
	store := &stubCredentialStore{
		accounts: make(map[string]*domain.Account),
		password: password,
	}
	for _, account := range accounts {
		store.accounts[account.ID] = account
	}
	return store
}

func (s *stubCredentialStore) VerifyCredentials(_ context.Context, email, password string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, account := range s.accounts {
		if account.Email == domain.NormalizeIdentity(email) {
			if password != s.password {
				return nil, repository.ErrPasswordMismatch
			}
			copied := *account
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubCredentialStore) GetByID(_ context.Context, id string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (s *stubCredentialStore) SetActive(_ context.Context, userID string, active bool, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.setActiveErr != nil {
		return s.setActiveErr
	}
	account, ok := s.accounts[userID]
	if !ok {
		return repository.ErrNotFound
	}
	account.IsActive = active
	return nil
}

func (s *stubCredentialStore) RecordLogin(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[userID]; !ok {
		return repository.ErrNotFound
	}
	s.lastLoginStamp = at
	return nil
}

type stubTokenRepository struct {
	mu     sync.Mutex
	byHash map[string]*domain.RefreshToken

	createErr    error
	revokeAllErr error
}

func newStubTokenRepository() *stubTokenRepository {
	return &stubTokenRepository{byHash: make(map[string]*domain.RefreshToken)}
}

func (s *stubTokenRepository) Create(_ context.Context, token domain.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return s.createErr
	}
	copied := token
	s.byHash[token.TokenHash] = &copied
	return nil
}

func (s *stubTokenRepository) GetByHash(_ context.Context, hash string) (*domain.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.byHash[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *token
	return &copied, nil
}

func (s *stubTokenRepository) RevokeByHash(_ context.Context, hash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.byHash[hash]
	if !ok || token.RevokedAt != nil {
		return repository.ErrNotFound
	}
	stamp := at
	token.RevokedAt = &stamp
	return nil
}

func (s *stubTokenRepository) RevokeAllForUser(_ context.Context, userID string, _ string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.revokeAllErr != nil {
		return 0, s.revokeAllErr
	}
	now := time.Now().UTC()
	count := 0
	for _, token := range s.byHash {
		if token.UserID == userID && token.RevokedAt == nil {
			stamp := now
			token.RevokedAt = &stamp
			count++
		}
	}
	return count, nil
}

func (s *stubTokenRepository) DeleteExpiredOrRevoked(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for hash, token := range s.byHash {
		if token.ExpiresAt.Before(before) || token.RevokedAt != nil {
			delete(s.byHash, hash)
			count++
		}
	}
	return count, nil
}

func (s *stubTokenRepository) ListActiveForUser(_ context.Context, userID string) ([]domain.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var tokens []domain.RefreshToken
	for _, token := range s.byHash {
		if token.UserID == userID && token.IsActive(now) {
			tokens = append(tokens, *token)
		}
	}
	return tokens, nil
}

func (s *stubTokenRepository) activeCount(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, token := range s.byHash {
		if token.UserID == userID && token.RevokedAt == nil {
			count++
		}
	}
	return count
}

type stubIssuer struct {
	mu     sync.Mutex
	serial int
	err    error
}

func (s *stubIssuer) Issue(_ context.Context, principal port.Principal, refreshTTL time.Duration) (domain.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return domain.TokenPair{}, s.err
	}
	s.serial++
	return domain.TokenPair{
		AccessToken:      fmt.Sprintf("access-%s-%d", principal.UserID, s.serial),
		RefreshToken:     fmt.Sprintf("refresh-%s-%d", principal.UserID, s.serial),
		AccessExpiresIn:  15 * time.Minute,
		RefreshExpiresAt: time.Now().UTC().Add(refreshTTL),
	}, nil
}

func (s *stubIssuer) Verify(_ context.Context, _ string) (*port.Principal, error) {
	return nil, fmt.Errorf("not implemented")
}

type recordingEventPublisher struct {
	mu          sync.Mutex
	locked      []domain.LoginLockedEvent
	reuse       []domain.TokenReuseDetectedEvent
	revoked     []domain.SessionsRevokedEvent
	deactivated []domain.AccountDeactivatedEvent
}

func (p *recordingEventPublisher) PublishLoginLocked(_ context.Context, event domain.LoginLockedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked = append(p.locked, event)
	return nil
}

func (p *recordingEventPublisher) PublishTokenReuseDetected(_ context.Context, event domain.TokenReuseDetectedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reuse = append(p.reuse, event)
	return nil
}

func (p *recordingEventPublisher) PublishSessionsRevoked(_ context.Context, event domain.SessionsRevokedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revoked = append(p.revoked, event)
	return nil
}

func (p *recordingEventPublisher) PublishAccountDeactivated(_ context.Context, event domain.AccountDeactivatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deactivated = append(p.deactivated, event)
	return nil
}

var (
	_ port.CredentialStore = (*stubCredentialStore)(nil)
	_ port.TokenRepository = (*stubTokenRepository)(nil)
	_ port.TokenIssuer     = (*stubIssuer)(nil)
	_ port.EventPublisher  = (*recordingEventPublisher)(nil)
)
