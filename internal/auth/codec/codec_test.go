package codec_test

import (
	"testing"
	"time"

	"github.com/halcyonlabs/keygate/internal/auth/codec"
	"github.com/halcyonlabs/keygate/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestMintAndDecodeAccessToken(t *testing.T) {
	keys, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Algorithm: jwtx.AlgorithmEdDSA,
		Issuer:    "keygate-test",
		NumKeys:   1,
	})
	require.NoError(t, err)

	c := codec.New(keys, "keygate-test", time.Hour)

	token, claims, err := c.MintAccessToken("user-1", "TEST", []string{"test"}, time.Now())
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.NotEmpty(t, claims.ID)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "TEST", claims.ClientID)

	decoded, err := c.DecodeAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, claims.ID, decoded.ID)
	require.Equal(t, []string{"test"}, decoded.Scopes)
}

func TestNewOpaqueTokenIsUniqueAndFingerprinted(t *testing.T) {
	a, err := codec.NewOpaqueToken()
	require.NoError(t, err)
	b, err := codec.NewOpaqueToken()
	require.NoError(t, err)

	require.NotEqual(t, a.Value, b.Value)
	require.NotEqual(t, a.Fingerprint, b.Fingerprint)
	require.NotEqual(t, a.Value, a.Fingerprint)
}
