package domain

import (
	"strings"
	"time"
)

// Account mirrors the persisted representation of a credential-bearing account.
// Ownership of the row lives with the credential store; this service reads the
// active flag and requests deactivation.
type Account struct {
	ID             string
	TenantID       string
	Email          string
	PasswordHash   string
	Roles          []string
	IsActive       bool
	CreatedAt      time.Time
	DeactivatedAt  *time.Time
	DeactivateNote *string
	LastLogin      *time.Time
}

// NormalizeIdentity lowercases and trims an email so it can serve as a
// rate-limit map key. All limiter entry points must go through this.
func NormalizeIdentity(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
