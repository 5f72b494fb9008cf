package port

import (
	"context"
	"time"

	"github.com/Dokus-Tech/dokus-auth/internal/core/domain"
)

// CredentialStore verifies email/password pairs and owns the account active
// flag. The orchestrator never touches password material directly.
type CredentialStore interface {
	// VerifyCredentials returns the account when the pair matches,
	// repository.ErrNotFound when the account does not exist, and
	// ErrPasswordMismatch when the password is wrong.
	VerifyCredentials(ctx context.Context, email, password string) (*domain.Account, error)
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// SetActive flips the active flag, persisting reason for audit.
	SetActive(ctx context.Context, userID string, active bool, reason string) error
	// RecordLogin stamps the last successful login time. Failures here must
	// not fail the login itself.
	RecordLogin(ctx context.Context, userID string, at time.Time) error
}
