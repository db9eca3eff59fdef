package identity

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"koach/cmd/security/password"
)

// MaxUsernameLength bounds usernames in runes.
const MaxUsernameLength = 64

// Account is a registered user. It never carries a credential.
type Account struct {
	ID        string
	Name      *string
	Username  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccountAuth pairs an account with its stored credential. Only the login
// path sees this type.
type AccountAuth struct {
	Account      Account
	PasswordHash password.Encoded
}

// CreateAccountInput describes a new account.
// PasswordHash may be empty (no credential set yet).
type CreateAccountInput struct {
	Name         *string
	Username     string
	PasswordHash password.Encoded
	Now          time.Time
}

// UpdateAccountInput changes profile fields. Nil fields are left untouched;
// a non-nil blank Name clears it. A non-empty PasswordHash replaces the
// credential in the same write as the profile fields.
type UpdateAccountInput struct {
	Name         *string
	Username     *string
	PasswordHash password.Encoded
	Now          time.Time
}

// Store is the identity persistence boundary.
//
// Contract:
// - Username uniqueness is case-insensitive; a violation is ErrConflict
//   with Field "username", including between racing creates.
// - Missing ids are ErrNotFound.
// - UpdateAccount is all or nothing: a failed update leaves both the
//   profile and the credential as they were.
// - Credentials are accepted only as password.Encoded and are never returned
//   outside AccountAuth.
type Store interface {
	CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error)
	GetAccountByID(ctx context.Context, id string) (Account, error)
	GetAccountAuthByUsername(ctx context.Context, username string) (AccountAuth, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	UpdateAccount(ctx context.Context, id string, in UpdateAccountInput) (Account, error)
	SetPasswordHash(ctx context.Context, id string, hash password.Encoded, now time.Time) error
	DeleteAccount(ctx context.Context, id string) error

	Ping(ctx context.Context) error
	Close() error
}

func checkUsername(op, username string) (string, string, error) {
	u := strings.TrimSpace(username)
	if u == "" {
		return "", "", invalid(op, "username", "is required")
	}
	if utf8.RuneCountInString(u) > MaxUsernameLength {
		return "", "", invalid(op, "username", "is too long")
	}
	return u, NormalizeUsername(u), nil
}

// checkHash rejects anything that is not Hasher output, so plaintext can
// never be persisted through this boundary.
func checkHash(op string, hash password.Encoded, allowEmpty bool) error {
	if hash.IsZero() {
		if allowEmpty {
			return nil
		}
		return invalid(op, "password_hash", "is required")
	}
	if hash.Algorithm() == "" {
		return invalid(op, "password_hash", "unrecognized format")
	}
	return nil
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}
