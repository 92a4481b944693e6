package domain

import "time"

// AuthorizationCode represents an OAuth 2.0 authorization code issuance.
// The code value itself is never stored, only its fingerprint.
type AuthorizationCode struct {
	ID                  string
	UserID              string
	ClientID            string
	CodeHash            string // deterministic fingerprint (base64url SHA-256)
	RedirectURI         string
	Scopes              []string
	CodeChallenge       string
	CodeChallengeMethod string // "S256" or "plain"
	ExpiresAt           time.Time
	Revoked             bool
	CreatedAt           time.Time
}

func (c AuthorizationCode) TokenScopes() []string { return c.Scopes }
func (c AuthorizationCode) ExpiryTime() time.Time { return c.ExpiresAt }
func (c AuthorizationCode) IsRevoked() bool       { return c.Revoked }
