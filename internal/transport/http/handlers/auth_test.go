package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/Dokus-Tech/dokus-auth/internal/core/domain"
	"github.com/Dokus-Tech/dokus-auth/internal/infra/config"
	"github.com/Dokus-Tech/dokus-auth/internal/infra/security"
	"github.com/Dokus-Tech/dokus-auth/internal/limiter"
	"github.com/Dokus-Tech/dokus-auth/internal/repository"
	"github.com/Dokus-Tech/dokus-auth/internal/usecase"
)

type fakeCredentialStore struct {
	account  *domain.Account
	password string
}

func (s *fakeCredentialStore) VerifyCredentials(_ context.Context, email, password string) (*domain.Account, error) {
	if s.account == nil || s.account.Email != domain.NormalizeIdentity(email) {
		return nil, repository.ErrNotFound
	}
	if password != s.password {
		return nil, repository.ErrPasswordMismatch
	}
	copied := *s.account
	return &copied, nil
}

func (s *fakeCredentialStore) GetByID(_ context.Context, id string) (*domain.Account, error) {
	if s.account == nil || s.account.ID != id {
		return nil, repository.ErrNotFound
	}
	copied := *s.account
	return &copied, nil
}

func (s *fakeCredentialStore) SetActive(_ context.Context, userID string, active bool, _ string) error {
	if s.account == nil || s.account.ID != userID {
		return repository.ErrNotFound
	}
	s.account.IsActive = active
	return nil
}

func (s *fakeCredentialStore) RecordLogin(_ context.Context, _ string, _ time.Time) error {
	return nil
}

type fakeTokenRepository struct {
	byHash map[string]*domain.RefreshToken
}

func (s *fakeTokenRepository) Create(_ context.Context, token domain.RefreshToken) error {
	copied := token
	s.byHash[token.TokenHash] = &copied
	return nil
}

func (s *fakeTokenRepository) GetByHash(_ context.Context, hash string) (*domain.RefreshToken, error) {
	token, ok := s.byHash[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *token
	return &copied, nil
}

func (s *fakeTokenRepository) RevokeByHash(_ context.Context, hash string, at time.Time) error {
	token, ok := s.byHash[hash]
	if !ok || token.RevokedAt != nil {
		return repository.ErrNotFound
	}
	stamp := at
	token.RevokedAt = &stamp
	return nil
}

func (s *fakeTokenRepository) RevokeAllForUser(_ context.Context, userID string, _ string) (int, error) {
	count := 0
	now := time.Now().UTC()
	for _, token := range s.byHash {
		if token.UserID == userID && token.RevokedAt == nil {
			stamp := now
			token.RevokedAt = &stamp
			count++
		}
	}
	return count, nil
}

func (s *fakeTokenRepository) DeleteExpiredOrRevoked(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}

func (s *fakeTokenRepository) ListActiveForUser(_ context.Context, userID string) ([]domain.RefreshToken, error) {
	now := time.Now().UTC()
	var tokens []domain.RefreshToken
	for _, token := range s.byHash {
		if token.UserID == userID && token.IsActive(now) {
			tokens = append(tokens, *token)
		}
	}
	return tokens, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zaptest.NewLogger(t)

	credentials := &fakeCredentialStore{
		account: &domain.Account{
			ID:       "user-1",
			TenantID: "tenant-1",
			Email:    "user@example.com",
			Roles:    []string{"member"},
			IsActive: true,
		},
		password: "s3cret-pass",
	}
	tokens := &fakeTokenRepository{byHash: make(map[string]*domain.RefreshToken)}
	throttle := limiter.NewMemoryThrottle(limiter.Config{
		MaxAttempts:     5,
		AttemptWindow:   15 * time.Minute,
		LockoutDuration: 15 * time.Minute,
	}, log)
	issuer, err := security.NewTokenIssuer("0123456789abcdef0123456789abcdef", "dokus-auth-test", 15*time.Minute)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	rotator := usecase.NewTokenRotator(tokens, nil, log)

	cfg := &config.AppConfig{}
	cfg.JWT.RefreshTokenTTL = 168 * time.Hour

	orchestrator := usecase.NewAuthOrchestrator(cfg, credentials, tokens, throttle, issuer, rotator, nil, log)

	r := gin.New()
	r.Use(gin.Recovery())

	authGroup := r.Group("/api/v1/auth")
	NewAuthHandler(orchestrator).RegisterRoutes(authGroup)

	return r
}

func postJSON(r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoginEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := postJSON(r, "/api/v1/auth/login", LoginRequest{Email: "user@example.com", Password: "s3cret-pass"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp TokenPairResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatalf("expected token pair, got %+v", resp)
	}
	if resp.TokenType != "Bearer" {
		t.Fatalf("unexpected token type %q", resp.TokenType)
	}
}

func TestLoginEndpointBadCredentials(t *testing.T) {
	r := newTestRouter(t)

	w := postJSON(r, "/api/v1/auth/login", LoginRequest{Email: "user@example.com", Password: "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Code != "invalid_credentials" {
		t.Fatalf("unexpected code %q", resp.Code)
	}
	if !resp.Recoverable {
		t.Fatal("credential failures are recoverable")
	}
}

func TestLoginEndpointRateLimited(t *testing.T) {
	r := newTestRouter(t)

	for i := 0; i < 5; i++ {
		w := postJSON(r, "/api/v1/auth/login", LoginRequest{Email: "user@example.com", Password: "wrong"})
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, w.Code)
		}
	}

	w := postJSON(r, "/api/v1/auth/login", LoginRequest{Email: "user@example.com", Password: "wrong"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.RetryAfterSeconds == nil || *resp.RetryAfterSeconds <= 0 {
		t.Fatalf("expected positive retry_after_seconds, got %+v", resp.RetryAfterSeconds)
	}
	if *resp.RetryAfterSeconds > 900 {
		t.Fatalf("retry_after_seconds exceeds the lockout duration: %d", *resp.RetryAfterSeconds)
	}
}

func TestRefreshEndpointRotation(t *testing.T) {
	r := newTestRouter(t)

	login := postJSON(r, "/api/v1/auth/login", LoginRequest{Email: "user@example.com", Password: "s3cret-pass"})
	if login.Code != http.StatusOK {
		t.Fatalf("login failed: %d", login.Code)
	}
	var pair TokenPairResponse
	if err := json.Unmarshal(login.Body.Bytes(), &pair); err != nil {
		t.Fatalf("unmarshal login response: %v", err)
	}

	refresh := postJSON(r, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: pair.RefreshToken})
	if refresh.Code != http.StatusOK {
		t.Fatalf("expected 200 on refresh, got %d: %s", refresh.Code, refresh.Body.String())
	}

	// The original token was rotated away; replaying it is rejected.
	replay := postJSON(r, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: pair.RefreshToken})
	if replay.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on replay, got %d", replay.Code)
	}
}

func TestLogoutEndpointIdempotent(t *testing.T) {
	r := newTestRouter(t)

	login := postJSON(r, "/api/v1/auth/login", LoginRequest{Email: "user@example.com", Password: "s3cret-pass"})
	var pair TokenPairResponse
	if err := json.Unmarshal(login.Body.Bytes(), &pair); err != nil {
		t.Fatalf("unmarshal login response: %v", err)
	}

	first := postJSON(r, "/api/v1/auth/logout", LogoutRequest{RefreshToken: pair.RefreshToken})
	if first.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", first.Code)
	}

	second := postJSON(r, "/api/v1/auth/logout", LogoutRequest{RefreshToken: pair.RefreshToken})
	if second.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on repeat logout, got %d", second.Code)
	}
}
