package security

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/Dokus-Tech/dokus-auth/internal/core/domain"
	"github.com/Dokus-Tech/dokus-auth/internal/core/port"
)

var (
	// ErrInvalidAccessToken indicates the access token is malformed or its
	// signature does not verify.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrExpiredAccessToken indicates the access token has expired.
	ErrExpiredAccessToken = errors.New("access token expired")
)

// AccessTokenClaims augments registered claims with principal context.
type AccessTokenClaims struct {
	UserID   string   `json:"uid"`
	TenantID string   `json:"tenant,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer mints HS256-signed access tokens and opaque refresh tokens.
type TokenIssuer struct {
	signingKey []byte
	issuer     string
	accessTTL  time.Duration
}

// NewTokenIssuer constructs a TokenIssuer. The signing key must be non-empty.
func NewTokenIssuer(signingKey, issuer string, accessTTL time.Duration) (*TokenIssuer, error) {
	if strings.TrimSpace(signingKey) == "" {
		return nil, fmt.Errorf("signing key is required")
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}

	return &TokenIssuer{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		accessTTL:  accessTTL,
	}, nil
}

// Issue mints a signed access token plus an opaque refresh token for the
// principal. The refresh token is random; only its hash is ever persisted.
func (t *TokenIssuer) Issue(ctx context.Context, principal port.Principal, refreshTTL time.Duration) (domain.TokenPair, error) {
	if err := ctx.Err(); err != nil {
		return domain.TokenPair{}, err
	}
	if principal.UserID == "" {
		return domain.TokenPair{}, fmt.Errorf("user id is required")
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}

	now := time.Now().UTC()

	claims := AccessTokenClaims{
		UserID:   principal.UserID,
		TenantID: principal.TenantID,
		Roles:    principal.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.UserID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
			ID:        uuid.NewString(),
		},
	}

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.signingKey)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := GenerateSecureToken(32)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("generate refresh token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresIn:  t.accessTTL,
		RefreshExpiresAt: now.Add(refreshTTL),
	}, nil
}

// Verify validates the access token signature and claims and returns the
// embedded principal.
func (t *TokenIssuer) Verify(ctx context.Context, accessToken string) (*port.Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, ErrInvalidAccessToken
	}

	claims := &AccessTokenClaims{}
	parsed, err := jwt.ParseWithClaims(accessToken, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.signingKey, nil
	}, jwt.WithIssuer(t.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrInvalidAccessToken
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return nil, ErrInvalidAccessToken
	}

	return &port.Principal{
		UserID:   claims.UserID,
		TenantID: claims.TenantID,
		Roles:    claims.Roles,
	}, nil
}

var _ port.TokenIssuer = (*TokenIssuer)(nil)
