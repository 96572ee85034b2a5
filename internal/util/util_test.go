package util

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
)

func signToken(t *testing.T, secret, subject string, expires time.Time) string {
	t.Helper()
	claims := Claims{
		Email: "user@example.com",
		StandardClaims: jwt.StandardClaims{
			Subject:   subject,
			ExpiresAt: expires.Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func TestValidateJWT(t *testing.T) {
	const secret = "test-secret"
	tokenString := signToken(t, secret, "user-1", time.Now().Add(time.Hour))

	claims, err := ValidateJWT(tokenString, secret)
	if err != nil {
		t.Fatalf("ValidateJWT returned error: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("expected subject user-1, got %s", claims.Subject)
	}
}

func TestValidateJWTWrongSecret(t *testing.T) {
	tokenString := signToken(t, "right-secret", "user-1", time.Now().Add(time.Hour))
	if _, err := ValidateJWT(tokenString, "wrong-secret"); err == nil {
		t.Fatal("expected an error for a token signed with another secret")
	}
}

func TestValidateJWTExpired(t *testing.T) {
	const secret = "test-secret"
	tokenString := signToken(t, secret, "user-1", time.Now().Add(-time.Hour))
	if _, err := ValidateJWT(tokenString, secret); err == nil {
		t.Fatal("expected an error for an expired token")
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("hello", 10); got != "hello" {
		t.Fatalf("short strings pass through, got %q", got)
	}
	if got := TruncateRunes("hello world", 5); got != "hello" {
		t.Fatalf("expected truncation at 5 runes, got %q", got)
	}
	// Truncation must never split a multi-byte rune.
	if got := TruncateRunes("héllø wörld", 4); got != "héll" {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
}
