package domain

// GrantType identifies an OAuth2 grant strategy.
type GrantType string

const (
	GrantAuthorizationCode GrantType = "authorization_code"
	GrantClientCredentials GrantType = "client_credentials"
	GrantPassword          GrantType = "password"
	GrantRefreshToken      GrantType = "refresh_token"
)

// AllowedGrantTypes lists every grant type the server understands.
var AllowedGrantTypes = []GrantType{
	GrantAuthorizationCode,
	GrantClientCredentials,
	GrantPassword,
	GrantRefreshToken,
}

// Valid reports whether gt is one of the supported grant types.
func (gt GrantType) Valid() bool {
	switch gt {
	case GrantAuthorizationCode, GrantClientCredentials, GrantPassword, GrantRefreshToken:
		return true
	}
	return false
}

func (gt GrantType) String() string { return string(gt) }
