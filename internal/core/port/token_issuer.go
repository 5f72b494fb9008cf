package port

import (
	"context"
	"time"

	"github.com/Dokus-Tech/dokus-auth/internal/core/domain"
)

// Principal identifies the subject a token pair is minted for.
type Principal struct {
	UserID   string
	TenantID string
	Roles    []string
}

// TokenIssuer mints signed access tokens and opaque refresh tokens for a
// principal. Verification of inbound access tokens lives behind the same
// interface so transport middleware can share the implementation.
type TokenIssuer interface {
	Issue(ctx context.Context, principal Principal, refreshTTL time.Duration) (domain.TokenPair, error)
	Verify(ctx context.Context, accessToken string) (*Principal, error)
}
