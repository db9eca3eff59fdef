package token

import "errors"

// Public, stable errors for callers.
var (
	ErrSecretMissing  = errors.New("token secret missing")
	ErrSecretTooShort = errors.New("token secret too short")

	// ErrInvalidToken covers every verification failure. Callers must not
	// distinguish causes when responding to clients.
	ErrInvalidToken = errors.New("invalid token")
)
