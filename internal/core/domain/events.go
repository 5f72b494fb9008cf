package domain

import "time"

// LoginLockedEvent represents the payload for auth.login.locked messages.
type LoginLockedEvent struct {
	EventID     string
	IdentityKey string
	Attempts    int
	LockedUntil time.Time
	IPAddress   *string
	Metadata    map[string]any
}

// TokenReuseDetectedEvent represents the payload for
// auth.token.reuse_detected messages. Emitted when a revoked refresh token is
// presented again, the strongest signal of token theft the service observes.
type TokenReuseDetectedEvent struct {
	EventID       string
	UserID        string
	TokenHash     string
	ReusedAt      time.Time
	TokensRevoked int
	IPAddress     *string
	UserAgent     *string
	Metadata      map[string]any
}

// SessionsRevokedEvent represents the payload for auth.sessions.revoked
// messages (bulk revocation after password reset or detected compromise).
type SessionsRevokedEvent struct {
	EventID   string
	UserID    string
	Count     int
	Reason    string
	RevokedAt time.Time
	Metadata  map[string]any
}

// AccountDeactivatedEvent represents the payload for auth.account.deactivated
// messages.
type AccountDeactivatedEvent struct {
	EventID       string
	UserID        string
	Reason        string
	DeactivatedAt time.Time
	Metadata      map[string]any
}
