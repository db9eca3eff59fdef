package password

import (
	"fmt"
	"math"
	"runtime"
	"strings"

	"github.com/caarlos0/env/v11"
	"golang.org/x/crypto/bcrypt"
)

// Algorithm names a supported KDF.
type Algorithm string

const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// Hard limits on work factors. Config.Check keeps new hashes inside them
// and verification refuses stored hashes outside them, so any credential
// this package ever produced stays verifiable whatever the current settings.
const (
	maxBcryptCost        = 16
	minArgon2MemoryKiB   = 8 * 1024    // 8 MiB
	maxArgon2MemoryKiB   = 1024 * 1024 // 1 GiB
	maxArgon2Iterations  = 20
	maxArgon2Parallelism = 64
	minArgon2SaltLength  = 8
	maxArgon2SaltLength  = 64
	minArgon2KeyLength   = 16
	maxArgon2KeyLength   = 64
)

// BcryptParams controls bcrypt hashing cost.
type BcryptParams struct {
	Cost int
}

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy controls password validation and anti-DoS boundaries.
type Policy struct {
	MinLength int
	MaxLength int
	// If true, enable an extra, minimal weak-pattern rejection.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Algorithm Algorithm
	Bcrypt    BcryptParams
	Params    Argon2idParams
	Policy    Policy
}

// DefaultConfig returns bcrypt at cost 10 with a permissive policy.
func DefaultConfig() Config {
	return Config{
		Algorithm: AlgorithmBcrypt,
		Bcrypt:    BcryptParams{Cost: 10},
		Params:    defaultArgon2idParams(),
		Policy: Policy{
			MinLength:      1,
			MaxLength:      256,
			RejectVeryWeak: false,
		},
	}
}

func defaultArgon2idParams() Argon2idParams {
	// Clamp to [1..4] to keep resource usage predictable in containers.
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}
	return Argon2idParams{
		MemoryKiB:   64 * 1024, // 64 MiB
		Iterations:  3,
		Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
		SaltLength:  16,
		KeyLength:   32,
	}
}

type envConfig struct {
	Algorithm      string `env:"KOACH_PASSWORD_ALGORITHM" envDefault:"bcrypt"`
	BcryptCost     int    `env:"KOACH_BCRYPT_COST" envDefault:"10"`
	MinLength      int    `env:"KOACH_PASSWORD_MIN_LEN" envDefault:"1"`
	MaxLength      int    `env:"KOACH_PASSWORD_MAX_LEN" envDefault:"256"`
	RejectVeryWeak bool   `env:"KOACH_PASSWORD_REJECT_VERY_WEAK"`

	MemoryKiB   uint32 `env:"KOACH_ARGON2_MEMORY_KIB" envDefault:"65536"`
	Iterations  uint32 `env:"KOACH_ARGON2_ITERATIONS" envDefault:"3"`
	Parallelism uint32 `env:"KOACH_ARGON2_PARALLELISM"`
	SaltLength  uint32 `env:"KOACH_ARGON2_SALT_LEN" envDefault:"16"`
	KeyLength   uint32 `env:"KOACH_ARGON2_KEY_LEN" envDefault:"32"`
}

// FromEnv loads config from environment variables.
//
// Env surface:
// - KOACH_PASSWORD_ALGORITHM (bcrypt|argon2id)
// - KOACH_BCRYPT_COST
// - KOACH_PASSWORD_MIN_LEN
// - KOACH_PASSWORD_MAX_LEN
// - KOACH_PASSWORD_REJECT_VERY_WEAK (true/false)
// - KOACH_ARGON2_MEMORY_KIB
// - KOACH_ARGON2_ITERATIONS
// - KOACH_ARGON2_PARALLELISM (defaults to min(NumCPU, 4))
// - KOACH_ARGON2_SALT_LEN
// - KOACH_ARGON2_KEY_LEN
func FromEnv() (Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("password config: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Algorithm = Algorithm(strings.ToLower(strings.TrimSpace(raw.Algorithm)))
	cfg.Bcrypt.Cost = raw.BcryptCost
	cfg.Policy = Policy{
		MinLength:      raw.MinLength,
		MaxLength:      raw.MaxLength,
		RejectVeryWeak: raw.RejectVeryWeak,
	}
	cfg.Params.MemoryKiB = raw.MemoryKiB
	cfg.Params.Iterations = raw.Iterations
	cfg.Params.SaltLength = raw.SaltLength
	cfg.Params.KeyLength = raw.KeyLength
	if raw.Parallelism != 0 {
		if raw.Parallelism > maxArgon2Parallelism {
			return Config{}, fmt.Errorf("KOACH_ARGON2_PARALLELISM: out of range [1..%d]", maxArgon2Parallelism)
		}
		p, err := u32ToU8(raw.Parallelism)
		if err != nil {
			return Config{}, fmt.Errorf("KOACH_ARGON2_PARALLELISM: %w", err)
		}
		cfg.Params.Parallelism = p
	}

	if err := cfg.Check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Check validates the configuration ranges.
func (c Config) Check() error {
	switch c.Algorithm {
	case AlgorithmBcrypt, AlgorithmArgon2id:
	default:
		return fmt.Errorf("KOACH_PASSWORD_ALGORITHM: unsupported %q", c.Algorithm)
	}
	if err := inRange(c.Bcrypt.Cost, bcrypt.MinCost, maxBcryptCost); err != nil {
		return fmt.Errorf("KOACH_BCRYPT_COST: %w", err)
	}
	if err := inRange(c.Policy.MinLength, 1, 1024); err != nil {
		return fmt.Errorf("KOACH_PASSWORD_MIN_LEN: %w", err)
	}
	if err := inRange(c.Policy.MaxLength, 1, 4096); err != nil {
		return fmt.Errorf("KOACH_PASSWORD_MAX_LEN: %w", err)
	}
	if err := inRange(int(c.Params.MemoryKiB), minArgon2MemoryKiB, maxArgon2MemoryKiB); err != nil {
		return fmt.Errorf("KOACH_ARGON2_MEMORY_KIB: %w", err)
	}
	if err := inRange(int(c.Params.Iterations), 1, maxArgon2Iterations); err != nil {
		return fmt.Errorf("KOACH_ARGON2_ITERATIONS: %w", err)
	}
	if err := inRange(int(c.Params.Parallelism), 1, maxArgon2Parallelism); err != nil {
		return fmt.Errorf("KOACH_ARGON2_PARALLELISM: %w", err)
	}
	if err := inRange(int(c.Params.SaltLength), minArgon2SaltLength, maxArgon2SaltLength); err != nil {
		return fmt.Errorf("KOACH_ARGON2_SALT_LEN: %w", err)
	}
	if err := inRange(int(c.Params.KeyLength), minArgon2KeyLength, maxArgon2KeyLength); err != nil {
		return fmt.Errorf("KOACH_ARGON2_KEY_LEN: %w", err)
	}

	// Final sanity.
	if c.Policy.MinLength > c.Policy.MaxLength {
		return fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			c.Policy.MinLength,
			c.Policy.MaxLength,
		)
	}
	return nil
}

func inRange(v, minVal, maxVal int) error {
	if v < minVal || v > maxVal {
		return fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return nil
}

func u32ToU8(u uint32) (uint8, error) {
	if u > math.MaxUint8 {
		return 0, fmt.Errorf("out of range [0..%d]", math.MaxUint8)
	}
	return uint8(u), nil
}
