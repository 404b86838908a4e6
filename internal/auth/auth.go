// Package auth provides password hashing and access-token handling for the
// doctor login flow. Passwords are bcrypt-hashed; access tokens are HS256
// JWTs carrying the doctor's username and role.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenTTL is the access-token lifetime used when the issuer is
// constructed without one.
const DefaultTokenTTL = 30 * time.Minute

// ErrEmptySecret indicates a token issuer was constructed without a signing
// secret.
var ErrEmptySecret = errors.New("token secret must not be empty")

// HashPassword hashes a plain-text password with bcrypt at default cost.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword reports whether the plain-text password matches the hash.
func VerifyPassword(password, hashedPassword string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// TokenIssuer creates and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates a TokenIssuer. A non-positive ttl falls back to
// DefaultTokenTTL.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}, nil
}

// Sign creates a token carrying the given claims plus an expiry at the
// issuer's default TTL.
func (i *TokenIssuer) Sign(claims map[string]any) (string, error) {
	return i.SignWithTTL(claims, i.ttl)
}

// SignWithTTL creates a token with an explicit lifetime. A negative ttl
// produces an already-expired token, which tests use to exercise expiry.
func (i *TokenIssuer) SignWithTTL(claims map[string]any, ttl time.Duration) (string, error) {
	payload := make(jwt.MapClaims, len(claims)+1)
	for k, v := range claims {
		payload[k] = v
	}
	payload["exp"] = jwt.NewNumericDate(time.Now().Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)
	return token.SignedString(i.secret)
}

// Verify parses and validates a token, returning its claims. Returns
// (nil, false) rather than an error for invalid, tampered, or expired
// tokens: callers treat all of those identically as "not authenticated".
func (i *TokenIssuer) Verify(tokenString string) (jwt.MapClaims, bool) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}
	return claims, true
}
