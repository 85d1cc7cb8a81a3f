// Package auth issues and verifies the bearer tokens that identify every
// client session, and provides password hashing and Google sign-in.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
	ErrMissingToken = errors.New("missing authorization token")
)

// DefaultTokenLifetime is applied when Mint is called with a non-positive
// lifetime.
const DefaultTokenLifetime = 24 * time.Hour

// Claims is the JWT payload carried by every token. The jti uniquely
// identifies the token so two tokens minted for the same subject in the
// same second still differ.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenManager mints and verifies HS256-signed tokens with a shared secret.
type TokenManager struct {
	secret []byte
}

// NewTokenManager creates a TokenManager with the given secret.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// Mint creates a signed token for subject, valid for lifetime (or
// DefaultTokenLifetime when lifetime is zero). A negative lifetime
// mints an already-expired token.
func (m *TokenManager) Mint(subject string, lifetime time.Duration) (string, error) {
	if lifetime == 0 {
		lifetime = DefaultTokenLifetime
	}
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token string. Expired tokens return
// ErrTokenExpired; any other failure (bad signature, malformed input,
// wrong algorithm) returns ErrTokenInvalid.
func (m *TokenManager) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// DecodeID extracts the jti from a token WITHOUT verifying its signature
// or expiry. Suitable only for map lookups keyed by token ID; never use
// the result to grant access.
func DecodeID(tokenStr string) (string, error) {
	parser := jwt.NewParser()
	claims := &Claims{}
	_, _, err := parser.ParseUnverified(tokenStr, claims)
	if err != nil {
		return "", ErrTokenInvalid
	}
	if claims.RegisteredClaims.ID == "" {
		return "", ErrTokenInvalid
	}
	return claims.RegisteredClaims.ID, nil
}

// GenerateSecretKey returns a random 256-bit key, base64-encoded, for use
// as the HMAC signing secret when none is configured.
func GenerateSecretKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
