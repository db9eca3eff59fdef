package token

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	// SecretEnvKey is the env var name for the signing secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	SecretEnvKey = "KOACH_TOKEN_SECRET"

	// MinSecretBytes is the shortest accepted HS256 secret.
	MinSecretBytes = 32
)

// Config controls token issuance and verification.
type Config struct {
	Secret []byte
	// TTL == 0 means tokens carry no exp claim.
	TTL    time.Duration
	Issuer string
}

type envConfig struct {
	Secret string        `env:"KOACH_TOKEN_SECRET"`
	TTL    time.Duration `env:"KOACH_TOKEN_TTL" envDefault:"0s"`
	Issuer string        `env:"KOACH_TOKEN_ISSUER"`
}

// FromEnv loads and validates token config.
func FromEnv() (Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("token config: %w", err)
	}
	cfg := Config{
		Secret: []byte(strings.TrimSpace(raw.Secret)),
		TTL:    raw.TTL,
		Issuer: strings.TrimSpace(raw.Issuer),
	}
	if err := cfg.Check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Check enforces the secret policy and a non-negative TTL.
func (c Config) Check() error {
	if len(c.Secret) == 0 {
		return fmt.Errorf("%s: %w", SecretEnvKey, ErrSecretMissing)
	}
	if len(c.Secret) < MinSecretBytes {
		return fmt.Errorf("%s: %w (min %d bytes)", SecretEnvKey, ErrSecretTooShort, MinSecretBytes)
	}
	if c.TTL < 0 {
		return fmt.Errorf("KOACH_TOKEN_TTL: must be >= 0")
	}
	return nil
}
