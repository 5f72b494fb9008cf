package security

import (
	"context"
	"testing"
	"time"

	"github.com/Dokus-Tech/dokus-auth/internal/core/port"
)

func TestTokenIssuerRequiresSigningKey(t *testing.T) {
	if _, err := NewTokenIssuer("  ", "dokus-auth", time.Minute); err == nil {
		t.Fatal("expected error for blank signing key")
	}
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("test-signing-key", "dokus-auth", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	principal := port.Principal{
		UserID:   "user-1",
		TenantID: "tenant-1",
		Roles:    []string{"admin"},
	}

	pair, err := issuer.Issue(context.Background(), principal, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if pair.AccessToken == "" {
		t.Fatal("expected non-empty access token")
	}
	if pair.RefreshToken == "" {
		t.Fatal("expected non-empty refresh token")
	}
	if pair.AccessExpiresIn != time.Minute {
		t.Fatalf("unexpected access TTL: %v", pair.AccessExpiresIn)
	}
	if !pair.RefreshExpiresAt.After(time.Now()) {
		t.Fatal("refresh expiry not in the future")
	}

	got, err := issuer.Verify(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.UserID != principal.UserID {
		t.Fatalf("user id mismatch: got %q", got.UserID)
	}
	if got.TenantID != principal.TenantID {
		t.Fatalf("tenant mismatch: got %q", got.TenantID)
	}
	if len(got.Roles) != 1 || got.Roles[0] != "admin" {
		t.Fatalf("roles mismatch: got %v", got.Roles)
	}
}

func TestIssueGeneratesUniqueRefreshTokens(t *testing.T) {
	issuer, err := NewTokenIssuer("test-signing-key", "dokus-auth", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	principal := port.Principal{UserID: "user-1"}

	first, err := issuer.Issue(context.Background(), principal, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	second, err := issuer.Issue(context.Background(), principal, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if first.RefreshToken == second.RefreshToken {
		t.Fatal("expected unique refresh tokens per issuance")
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	issuerA, _ := NewTokenIssuer("key-a", "dokus-auth", time.Minute)
	issuerB, _ := NewTokenIssuer("key-b", "dokus-auth", time.Minute)

	pair, err := issuerA.Issue(context.Background(), port.Principal{UserID: "user-1"}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := issuerB.Verify(context.Background(), pair.AccessToken); err != ErrInvalidAccessToken {
		t.Fatalf("expected ErrInvalidAccessToken, got %v", err)
	}
}
