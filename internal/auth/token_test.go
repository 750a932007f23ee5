package auth_test

import (
	"errors"
	"testing"
	"time"

	"visit-tracker/internal/auth"

	"github.com/golang-jwt/jwt/v5"
)

func TestIssueAndParse(t *testing.T) {
	m := auth.NewTokenManager("test-secret", time.Hour, 24*time.Hour)
	in := auth.Principal{UserID: "u-1", Email: "c@example.com", Name: "Cee", Role: "customer"}

	token, err := m.IssueAccess(in)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	out, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out != in {
		t.Fatalf("expected %+v, got %+v", in, out)
	}
}

func TestParseRejects(t *testing.T) {
	m := auth.NewTokenManager("test-secret", time.Hour, time.Hour)
	other := auth.NewTokenManager("other-secret", time.Hour, time.Hour)
	expired := auth.NewTokenManager("test-secret", -time.Minute, time.Hour)

	foreign, _ := other.IssueAccess(auth.Principal{UserID: "u", Role: "admin"})
	stale, _ := expired.IssueAccess(auth.Principal{UserID: "u", Role: "admin"})
	noRole, _ := m.IssueAccess(auth.Principal{UserID: "u"})
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u", "role": "admin"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	cases := map[string]string{
		"garbage":        "not-a-token",
		"wrong secret":   foreign,
		"expired":        stale,
		"missing role":   noRole,
		"none algorithm": none,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := m.Parse(token); !errors.Is(err, auth.ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestRefreshTokenHash(t *testing.T) {
	token, hash, err := auth.NewRefreshToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if token == "" || len(hash) != 64 {
		t.Fatalf("unexpected token %q hash %q", token, hash)
	}
	if auth.HashRefreshToken(token) != hash {
		t.Fatal("hash is not deterministic")
	}
	other, _, _ := auth.NewRefreshToken()
	if other == token {
		t.Fatal("expected distinct tokens")
	}
}
