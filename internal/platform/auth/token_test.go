package auth

import (
	"testing"
	"time"
)

func newTestIssuer(t *testing.T, ttl time.Duration) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer("test-secret", "HS256", ttl)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	return issuer
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := newTestIssuer(t, 30*time.Minute)

	token, err := issuer.Issue("admin", "admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "admin" {
		t.Errorf("expected subject admin, got %s", claims.Subject)
	}
	if claims.Role != "admin" {
		t.Errorf("expected role admin, got %s", claims.Role)
	}
}

func TestTokenIssuer_Expiry(t *testing.T) {
	issuer := newTestIssuer(t, 30*time.Minute)

	base := time.Now()
	issuer.now = func() time.Time { return base }

	token, err := issuer.Issue("admin", "admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	got := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time)
	if got != 30*time.Minute {
		t.Errorf("expected 30m lifetime, got %s", got)
	}

	// Past expiry the token must be rejected.
	issuer.now = func() time.Time { return base.Add(31 * time.Minute) }
	if _, err := issuer.Parse(token); err == nil {
		t.Error("expected expired token to be rejected")
	}
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	issuer := newTestIssuer(t, time.Minute)
	other, err := NewTokenIssuer("other-secret", "HS256", time.Minute)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	token, err := issuer.Issue("admin", "admin")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := other.Parse(token); err == nil {
		t.Error("expected token signed with a different secret to be rejected")
	}
}

func TestNewTokenIssuer_Validation(t *testing.T) {
	if _, err := NewTokenIssuer("secret", "RS256", time.Minute); err == nil {
		t.Error("expected error for non-HMAC algorithm")
	}
	if _, err := NewTokenIssuer("", "HS256", time.Minute); err == nil {
		t.Error("expected error for empty secret")
	}
}
