package identity

import (
	"errors"
	"strings"
)

// Error kinds. Every error a Store returns for a caller mistake wraps one of
// these; anything else is an infrastructure failure.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// StoreError describes a rejected store call. Field names the account
// attribute at fault ("username", "password_hash") when there is one.
// Detail is for logs and never carries a credential.
type StoreError struct {
	Op     string
	Kind   error
	Field  string
	Detail string
}

func (e *StoreError) Error() string {
	parts := []string{e.Op, e.Kind.Error()}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	return strings.Join(parts, ": ")
}

func (e *StoreError) Unwrap() error { return e.Kind }

func invalid(op, field, detail string) error {
	return &StoreError{Op: op, Kind: ErrInvalidInput, Field: field, Detail: detail}
}

func notFound(op string) error {
	return &StoreError{Op: op, Kind: ErrNotFound}
}

func usernameTaken(op string) error {
	return &StoreError{Op: op, Kind: ErrConflict, Field: "username"}
}

// FieldOf returns the attribute a StoreError blames, or "".
func FieldOf(err error) string {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Field
	}
	return ""
}

func IsConflict(err error) bool     { return errors.Is(err, ErrConflict) }
func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
