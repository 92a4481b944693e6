package jwtx

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the access-token claims. The signed token carries everything a
// resource server needs to authorize a request offline: who the subject is,
// which client obtained the token, which scopes were granted, and when it
// expires. Revocation is mutable state and deliberately not embedded.
type Claims struct {
	jwt.RegisteredClaims

	// ClientID identifies the OAuth2 client the token was issued to. The
	// audience claim carries the same value; this field keeps it addressable
	// without unpacking aud.
	ClientID string `json:"cid,omitempty"`

	// Scopes are the granted permission scopes, e.g. ["profile:read"].
	Scopes []string `json:"scopes,omitempty"`
}

// NewAccessClaims builds minimally-correct access-token claims. Subject may be
// empty for client_credentials tokens, where the client itself is the
// principal. The jti doubles as the stored token identifier for revocation
// lookups.
func NewAccessClaims(
	subject, clientID string,
	scopes []string,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{clientID},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		ClientID: clientID,
		Scopes:   scopes,
	}
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}

	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't used before
// it becomes valid (nbf).
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}
