package app

import (
	"fmt"

	"koach/cmd/security/password"
	"koach/cmd/security/token"
)

// Security bundles the credential and token settings the server starts with.
type Security struct {
	Password password.Config
	Token    token.Config
}

// LoadSecurityConfig reads and checks both settings. Startup fails on a
// missing or short signing secret or on out-of-range hashing parameters;
// the server never falls back to weaker settings.
func LoadSecurityConfig() (Security, error) {
	pw, err := password.FromEnv()
	if err != nil {
		return Security{}, fmt.Errorf("security policy: %w", err)
	}
	tok, err := token.FromEnv()
	if err != nil {
		return Security{}, fmt.Errorf("security policy: %w", err)
	}
	return Security{Password: pw, Token: tok}, nil
}
