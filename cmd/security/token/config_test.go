package token

import (
	"errors"
	"testing"
	"time"
)

func TestFromEnv(t *testing.T) {
	t.Setenv(SecretEnvKey, "  0123456789abcdef0123456789abcdef  ")
	t.Setenv("KOACH_TOKEN_TTL", "24h")
	t.Setenv("KOACH_TOKEN_ISSUER", "koach")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if string(cfg.Secret) != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("secret not trimmed: %q", cfg.Secret)
	}
	if cfg.TTL != 24*time.Hour || cfg.Issuer != "koach" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestFromEnv_DefaultsToNoExpiry(t *testing.T) {
	t.Setenv(SecretEnvKey, "0123456789abcdef0123456789abcdef")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if cfg.TTL != 0 {
		t.Fatalf("TTL=%v want=0", cfg.TTL)
	}
}

func TestFromEnv_SecretPolicy(t *testing.T) {
	t.Setenv(SecretEnvKey, "")
	if _, err := FromEnv(); !errors.Is(err, ErrSecretMissing) {
		t.Fatalf("expected ErrSecretMissing, got %v", err)
	}

	t.Setenv(SecretEnvKey, "secret-jwt-token")
	if _, err := FromEnv(); !errors.Is(err, ErrSecretTooShort) {
		t.Fatalf("expected ErrSecretTooShort, got %v", err)
	}
}

func TestCheck_NegativeTTL(t *testing.T) {
	cfg := Config{Secret: testSecret, TTL: -time.Second}
	if err := cfg.Check(); err == nil {
		t.Fatalf("expected error")
	}
}
