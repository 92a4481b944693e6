package domain

import (
	"slices"
	"time"
)

// Client is a registered OAuth2 client application.
type Client struct {
	ID           string
	Name         string
	SecretHash   string // argon2 encoded; empty for public clients
	GrantTypes   []GrantType
	RedirectURIs []string
	Scopes       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Confidential reports whether the client registered a secret and must
// authenticate with it on every token request.
func (c Client) Confidential() bool {
	return c.SecretHash != ""
}

// AllowsGrantType reports whether the client is registered for the grant type.
func (c Client) AllowsGrantType(gt GrantType) bool {
	return slices.Contains(c.GrantTypes, gt)
}

// AllowsRedirectURI reports whether the URI exactly matches a registered
// redirect URI. Matching is byte-for-byte, no normalization.
func (c Client) AllowsRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

// AllowsScopes reports whether every requested scope is registered for the client.
func (c Client) AllowsScopes(requested []string) bool {
	for _, s := range requested {
		if !slices.Contains(c.Scopes, s) {
			return false
		}
	}
	return true
}
