package util

import (
	"fmt"
	"unicode/utf8"

	"github.com/dgrijalva/jwt-go"
)

// Claims carried in FutureTask access tokens. Subject is the user ID.
type Claims struct {
	Email string `json:"email"`
	jwt.StandardClaims
}

// ValidateJWT parses and verifies an HMAC-signed token.
func ValidateJWT(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// TruncateRunes shortens s to at most n runes, for stored display text.
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
