package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Dokus-Tech/dokus-auth/internal/core/domain"
	"github.com/Dokus-Tech/dokus-auth/internal/transport/http/middleware"
)

// ErrorResponse is the caller-facing failure payload. RetryAfterSeconds is
// present only on rate-limit rejections; Recoverable tells clients whether a
// user action (re-entering credentials, waiting) can make the request
// succeed.
type ErrorResponse struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	RetryAfterSeconds *int   `json:"retry_after_seconds,omitempty"`
	Recoverable       bool   `json:"recoverable"`
	TraceID           string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error payload carrying the request's trace ID.
func NewErrorResponse(c *gin.Context, code, message string, recoverable bool) ErrorResponse {
	return ErrorResponse{
		Code:        code,
		Message:     message,
		Recoverable: recoverable,
		TraceID:     middleware.GetTraceID(c),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	ClientID string `json:"client_id"`
}

// AccountSummary describes a minimal view of the authenticated account.
type AccountSummary struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenant_id,omitempty"`
	Email    string   `json:"email"`
	Roles    []string `json:"roles,omitempty"`
}

// TokenPairResponse is returned by login and refresh.
type TokenPairResponse struct {
	AccessToken      string          `json:"access_token"`
	RefreshToken     string          `json:"refresh_token"`
	TokenType        string          `json:"token_type"`
	ExpiresIn        int             `json:"expires_in"`
	RefreshExpiresAt time.Time       `json:"refresh_expires_at"`
	Account          *AccountSummary `json:"account,omitempty"`
}

// RefreshRequest represents the payload to rotate a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutRequest carries the refresh token to revoke.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RevokeAllRequest optionally labels a bulk session revocation.
type RevokeAllRequest struct {
	Reason string `json:"reason"`
}

// RevokeAllResponse reports how many sessions a bulk revocation touched.
type RevokeAllResponse struct {
	RevokedCount int `json:"revoked_count"`
}

// DeactivateRequest captures the audited reason for an account deactivation.
type DeactivateRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// SessionPayload describes one active refresh token in session listings. The
// token value itself never appears; only request metadata recorded at issue
// time.
type SessionPayload struct {
	ID        string    `json:"id"`
	ClientID  *string   `json:"client_id,omitempty"`
	IP        *string   `json:"ip,omitempty"`
	UserAgent *string   `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionListResponse wraps a user's active sessions.
type SessionListResponse struct {
	Sessions []SessionPayload `json:"sessions"`
	Total    int              `json:"total"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func newAccountSummary(account domain.Account) *AccountSummary {
	summary := &AccountSummary{
		ID:       account.ID,
		TenantID: account.TenantID,
		Email:    account.Email,
	}
	if len(account.Roles) > 0 {
		roles := make([]string, len(account.Roles))
		copy(roles, account.Roles)
		summary.Roles = roles
	}
	return summary
}

func newSessionPayload(token domain.RefreshToken) SessionPayload {
	return SessionPayload{
		ID:        token.ID,
		ClientID:  token.ClientID,
		IP:        token.IP,
		UserAgent: token.UserAgent,
		CreatedAt: token.CreatedAt,
		ExpiresAt: token.ExpiresAt,
	}
}
