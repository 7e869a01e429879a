package auth

import (
	"errors"
	"testing"
	"time"
)

func TestSessionDerivesPhoneFromClaims(t *testing.T) {
	t.Parallel()

	token, _, err := Issue("0555123456", ScopeSession, "issuer", "key", time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	s := NewSession(nil)
	s.SetToken(token)

	if got := s.Phone(); got != "0555123456" {
		t.Fatalf("Phone() = %q, want claim value", got)
	}
	if got, err := s.Token(); err != nil || got != token {
		t.Fatalf("Token() = %q, %v", got, err)
	}
}

func TestSessionTokenMissingIsPreconditionError(t *testing.T) {
	t.Parallel()

	s := NewSession(nil)
	if _, err := s.Token(); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("Token() error = %v, want ErrNoCredential", err)
	}
}

func TestExpireClearsAndNotifiesOnce(t *testing.T) {
	t.Parallel()

	fired := 0
	s := NewSession(func() { fired++ })
	s.SetToken("some-token")

	s.Expire()
	s.Expire()

	if fired != 1 {
		t.Fatalf("expiry callback fired %d times, want 1", fired)
	}
	if _, err := s.Token(); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("token survived Expire")
	}
}

func TestParseRejectsWrongScopeViaClaims(t *testing.T) {
	t.Parallel()

	token, _, err := Issue("0555", ScopeUpload, "issuer", "key", time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	claims, err := Parse(token, "key", "issuer")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if claims.Scope != ScopeUpload {
		t.Fatalf("Scope = %q, want %q", claims.Scope, ScopeUpload)
	}
	if _, err := Parse(token, "other-key", "issuer"); err == nil {
		t.Fatalf("Parse() accepted a token signed with another key")
	}
}
