package authapi

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

const defaultMaxBodyBytes = 1 << 20 // 1 MiB

// Config controls request handling for the account API.
type Config struct {
	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes int64 `env:"KOACH_API_MAX_BODY_BYTES" envDefault:"1048576"`

	// TrustProxy makes audit lines take the client IP from X-Forwarded-For.
	TrustProxy bool `env:"KOACH_API_TRUST_PROXY" envDefault:"false"`
}

// DefaultConfig returns the values used when no environment is set.
func DefaultConfig() Config {
	return Config{MaxBodyBytes: defaultMaxBodyBytes}
}

// LoadConfigFromEnv parses Config from the environment. Non-positive body
// limits fall back to the default.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("authapi: parse env: %w", err)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return cfg, nil
}
