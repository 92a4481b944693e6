// Package codec turns grant decisions into wire tokens. Access tokens are
// signed JWTs; authorization codes and refresh tokens are opaque values that
// are stored only by fingerprint.
package codec

import (
	"errors"
	"time"

	"github.com/halcyonlabs/keygate/pkg/cryptox"
	"github.com/halcyonlabs/keygate/pkg/jwtx"
)

// Codec mints and decodes the token formats used by the server.
type Codec struct {
	keys      *jwtx.KeyManager
	issuer    string
	accessTTL time.Duration
}

func New(keys *jwtx.KeyManager, issuer string, accessTTL time.Duration) *Codec {
	return &Codec{
		keys:      keys,
		issuer:    issuer,
		accessTTL: accessTTL,
	}
}

// AccessTTL reports the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// MintAccessToken signs a JWT for the given principal. The returned claims
// carry the jti that callers persist for revocation lookups.
func (c *Codec) MintAccessToken(subject, clientID string, scopes []string, now time.Time) (string, jwtx.Claims, error) {
	claims := jwtx.NewAccessClaims(subject, clientID, scopes, c.accessTTL, c.issuer, now)

	signer := c.keys.GetSigner()
	if signer == nil {
		return "", jwtx.Claims{}, errors.New("codec: no signing keys available")
	}

	token, err := signer.Sign(claims)
	if err != nil {
		return "", jwtx.Claims{}, err
	}
	return token, claims, nil
}

// DecodeAccessToken verifies signature, issuer and expiry and returns the claims.
func (c *Codec) DecodeAccessToken(raw string) (jwtx.Claims, error) {
	return c.keys.Verifier.Verify(raw)
}

// OpaqueToken is a freshly generated opaque credential. Value goes to the
// caller, Fingerprint goes to storage. The value is never persisted.
type OpaqueToken struct {
	Value       string
	Fingerprint string
}

// Fingerprint returns the storage fingerprint of an opaque token value.
func (c *Codec) Fingerprint(value string) string {
	return cryptox.FingerprintToken(value)
}

// NewOpaqueToken generates a 256-bit opaque token.
func NewOpaqueToken() (OpaqueToken, error) {
	value, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return OpaqueToken{}, err
	}
	return OpaqueToken{
		Value:       value,
		Fingerprint: cryptox.FingerprintToken(value),
	}, nil
}
