package domain

import "time"

// TokenPair represents what the token endpoint returns the short-lived access
// token (JWT) and, for grants that issue one, the opaque refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string // empty when the grant does not issue one
	TokenType    string // typically "Bearer"
	ExpiresIn    time.Duration
	Scope        string // space-delimited
}

// AccessToken models the stored access token record in the DB. The ID is the
// JWT's jti claim, which lets resource validation check revocation by lookup.
type AccessToken struct {
	ID        string
	UserID    string // empty for client-only tokens
	ClientID  string
	Scopes    []string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// RefreshToken models the stored refresh token record in the DB.
type RefreshToken struct {
	ID            string
	UserID        string // empty for client-only tokens
	ClientID      string
	TokenHash     string // deterministic fingerprint (base64url SHA-256)
	AccessTokenID string // jti of the access token minted alongside
	Scopes        []string
	ExpiresAt     time.Time
	Revoked       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Token capability interfaces. Callers probe for these instead of switching
// on concrete token kinds.
type (
	// HasScopes is implemented by tokens that carry a scope list.
	HasScopes interface {
		TokenScopes() []string
	}

	// HasExpiry is implemented by tokens with a fixed expiry instant.
	HasExpiry interface {
		ExpiryTime() time.Time
	}

	// Revocable is implemented by tokens that can be individually revoked.
	Revocable interface {
		IsRevoked() bool
	}
)

func (t AccessToken) TokenScopes() []string { return t.Scopes }
func (t AccessToken) ExpiryTime() time.Time { return t.ExpiresAt }
func (t AccessToken) IsRevoked() bool       { return t.Revoked }

func (t RefreshToken) TokenScopes() []string { return t.Scopes }
func (t RefreshToken) ExpiryTime() time.Time { return t.ExpiresAt }
func (t RefreshToken) IsRevoked() bool       { return t.Revoked }

// Usable reports whether the token is neither revoked nor past its expiry
// at the given instant.
func Usable[T interface {
	Revocable
	HasExpiry
}](t T, now time.Time) bool {
	return !t.IsRevoked() && !now.After(t.ExpiryTime())
}
