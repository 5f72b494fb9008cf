package usecase

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials indicates the provided email or password are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountInactive indicates the account is deactivated.
	ErrAccountInactive = errors.New("account is not active")
	// ErrAccountNotFound indicates the referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidRefreshToken indicates the presented refresh token does not
	// exist, was revoked, or failed rotation. Callers see this single error;
	// the precise cause stays in the logs.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrExpiredRefreshToken indicates the presented refresh token has expired.
	ErrExpiredRefreshToken = errors.New("refresh token expired")
	// ErrTokenAlreadyRevoked indicates a revoked token was presented again.
	// Internal to the rotation protocol; the transport never exposes it.
	ErrTokenAlreadyRevoked = errors.New("refresh token already revoked")
)

// TooManyAttemptsError rejects a login while the identity is locked out. It
// carries the retry hint the transport surfaces as a Retry-After header.
type TooManyAttemptsError struct {
	RetryAfter time.Duration
}

func (e *TooManyAttemptsError) Error() string {
	return fmt.Sprintf("too many login attempts, retry after %s", e.RetryAfter)
}

// RetryAfterSeconds reports the hint rounded up to whole seconds, never zero
// while a lockout is active.
func (e *TooManyAttemptsError) RetryAfterSeconds() int {
	seconds := int((e.RetryAfter + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}
