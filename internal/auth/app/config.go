package app

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the runtime configuration, loaded from the environment.
type Config struct {
	// Issuer is the iss claim stamped into every access token.
	Issuer string `env:"KEYGATE_ISSUER" envDefault:"keygate"`

	Algorithm string `env:"KEYGATE_ALGORITHM" envDefault:"EdDSA"` // EdDSA or RS256
	RSABits   int    `env:"KEYGATE_RSA_BITS"`                     // RS256 key size, 0 = 4096
	NumKeys   int    `env:"KEYGATE_NUM_KEYS"`                     // signing keys, 0 = 3

	// MasterKeyPath points at the key used to seal grant metadata at rest.
	// Empty falls back to KEYGATE_MASTER_KEY or an ephemeral key.
	MasterKeyPath string `env:"KEYGATE_MASTER_KEY_PATH"`

	DatabaseFile string `env:"KEYGATE_DATABASE_FILE" envDefault:"keygate.db"`

	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Port                 int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`

	AccessTokenTTL       time.Duration `env:"KEYGATE_ACCESS_TTL" envDefault:"1h"`
	RefreshTokenTTL      time.Duration `env:"KEYGATE_REFRESH_TTL" envDefault:"720h"`
	AuthorizationCodeTTL time.Duration `env:"KEYGATE_CODE_TTL" envDefault:"10m"`

	// RevokeAccessOnRotate also revokes the paired access token when a
	// refresh token is rotated. Off by default so in-flight requests keep
	// working until the access token expires on its own.
	RevokeAccessOnRotate bool `env:"KEYGATE_REVOKE_ACCESS_ON_ROTATE"`

	Seed SeedConfig `envPrefix:"KEYGATE_SEED_"`
}

// SeedConfig describes the client and user created on first boot when the
// database is empty. Leaving ClientID unset disables seeding.
type SeedConfig struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	ClientName   string   `env:"CLIENT_NAME" envDefault:"Seed Client"`
	RedirectURIs []string `env:"REDIRECT_URIS" envSeparator:","`
	Scopes       []string `env:"SCOPES" envSeparator:","`
	Username     string   `env:"USERNAME"`
	Password     string   `env:"PASSWORD"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (Config, error) {
	return env.ParseAs[Config]()
}
