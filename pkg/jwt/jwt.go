package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNotJWT       = errors.New("token is not a JWT")
)

// Claims are the fields the storefront reads from a backend bearer token.
// The signature is never checked here; the backend remains the authority.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

var parser = jwt.NewParser()

// Inspect decodes the token's claims without verifying the signature.
func Inspect(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, ErrNotJWT
		}
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ExpiresAt returns the exp claim, or the zero time when there is none.
func ExpiresAt(token string) (time.Time, error) {
	claims, err := Inspect(token)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}

// IsExpired reports whether token carries an exp claim at or before now.
// Opaque tokens and tokens without exp are treated as live.
func IsExpired(token string, now time.Time) bool {
	exp, err := ExpiresAt(token)
	if err != nil || exp.IsZero() {
		return false
	}
	return !now.Before(exp)
}
