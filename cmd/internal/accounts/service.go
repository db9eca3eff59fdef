// Package accounts implements the signup, login and account management flows
// on top of an identity.Store, a password.Hasher and a token issuer.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"koach/cmd/identity"
	"koach/cmd/security/password"
	"koach/cmd/security/token"
)

// Tokens issues and verifies bearer tokens.
type Tokens interface {
	token.Issuer
	token.Verifier
}

// Session is what signup and login hand back to the caller.
type Session struct {
	Account identity.Account
	Token   string
}

// SignupInput is a registration request.
type SignupInput struct {
	Name     *string `json:"name" validate:"omitempty,max=128"`
	Username string  `json:"username" validate:"required,max=64,username"`
	Password string  `json:"password" validate:"required"`
}

// LoginInput is a password login request.
type LoginInput struct {
	Username string
	Password string
}

// UpdateInput changes an account. Nil fields are left untouched.
type UpdateInput struct {
	Name     *string `json:"name" validate:"omitempty,max=128"`
	Username *string `json:"username" validate:"omitempty,max=64,username"`
	Password *string `json:"password" validate:"omitempty"`
}

// Service wires the account flows together. Safe for concurrent use.
type Service struct {
	store    identity.Store
	hasher   password.Hasher
	tokens   Tokens
	validate *validator.Validate
	log      *slog.Logger
	now      func() time.Time

	// decoy is verified against when the username is unknown so both
	// login failure paths cost one hash verification.
	decoy password.Encoded
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

type decoyHasher interface {
	DecoyHash() (password.Encoded, error)
}

// NewService builds a Service. It hashes a decoy credential up front.
func NewService(store identity.Store, hasher password.Hasher, tokens Tokens, opts ...Option) (*Service, error) {
	if store == nil || hasher == nil || tokens == nil {
		return nil, errors.New("accounts: nil dependency")
	}

	s := &Service{
		store:    store,
		hasher:   hasher,
		tokens:   tokens,
		validate: newValidator(),
		log:      slog.Default(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	var err error
	if dh, ok := hasher.(decoyHasher); ok {
		s.decoy, err = dh.DecoyHash()
	} else {
		s.decoy, err = hasher.Hash("koach-login-decoy-credential")
	}
	if err != nil {
		return nil, fmt.Errorf("accounts: decoy hash: %w", err)
	}
	return s, nil
}

// Signup validates input, hashes the password, persists the account and
// issues a token bound to the new id.
func (s *Service) Signup(ctx context.Context, in SignupInput) (Session, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := s.validate.Struct(in); err != nil {
		return Session{}, toValidationError(err)
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return Session{}, err
	}

	acc, err := s.store.CreateAccount(ctx, identity.CreateAccountInput{
		Name:         in.Name,
		Username:     in.Username,
		PasswordHash: hash,
		Now:          s.now(),
	})
	if err != nil {
		return Session{}, mapStoreError("create account", err)
	}

	tok, err := s.tokens.Issue(acc.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{Account: acc, Token: tok}, nil
}

// Login checks a username/password pair. Unknown usernames, accounts
// without a credential and wrong passwords all return ErrUnauthenticated
// after exactly one verification.
func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		s.hasher.Verify(s.decoy, in.Password)
		return Session{}, ErrUnauthenticated
	}

	auth, err := s.store.GetAccountAuthByUsername(ctx, username)
	if err != nil {
		if identity.IsNotFound(err) {
			s.hasher.Verify(s.decoy, in.Password)
			return Session{}, ErrUnauthenticated
		}
		return Session{}, fmt.Errorf("lookup account: %w", err)
	}

	stored := auth.PasswordHash
	if stored.IsZero() {
		s.hasher.Verify(s.decoy, in.Password)
		return Session{}, ErrUnauthenticated
	}
	if !s.hasher.Verify(stored, in.Password) {
		return Session{}, ErrUnauthenticated
	}

	if s.hasher.NeedsRehash(stored) {
		s.rehash(ctx, auth.Account.ID, in.Password)
	}

	tok, err := s.tokens.Issue(auth.Account.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	return Session{Account: auth.Account, Token: tok}, nil
}

// rehash upgrades a credential after a successful login. Failure only costs
// the upgrade, never the login.
func (s *Service) rehash(ctx context.Context, id, plain string) {
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		// Policy may have tightened since the hash was stored.
		s.log.Warn("accounts.rehash.skip", "account_id", id, "err", err)
		return
	}
	if err := s.store.SetPasswordHash(ctx, id, hash, s.now()); err != nil {
		s.log.Warn("accounts.rehash.fail", "account_id", id, "err", err)
		return
	}
	s.log.Info("accounts.rehash.ok", "account_id", id)
}

// Authenticate resolves a bearer token to a live account. An empty token
// fails before the store is touched.
func (s *Service) Authenticate(ctx context.Context, tok string) (identity.Account, error) {
	if tok == "" {
		return identity.Account{}, ErrUnauthenticated
	}
	id, err := s.tokens.Verify(tok)
	if err != nil {
		return identity.Account{}, ErrUnauthenticated
	}
	acc, err := s.store.GetAccountByID(ctx, id)
	if err != nil {
		if identity.IsNotFound(err) {
			return identity.Account{}, ErrUnauthenticated
		}
		return identity.Account{}, fmt.Errorf("resolve account: %w", err)
	}
	return acc, nil
}

// List returns every account, oldest first.
func (s *Service) List(ctx context.Context) ([]identity.Account, error) {
	out, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

// Get returns one account or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (identity.Account, error) {
	acc, err := s.store.GetAccountByID(ctx, id)
	if err != nil {
		return identity.Account{}, mapStoreError("get account", err)
	}
	return acc, nil
}

// Update applies profile changes and, when Password is set, the new
// credential in a single store write. The password is hashed before anything
// is written, so a policy failure leaves the account untouched.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (identity.Account, error) {
	if in.Username != nil {
		u := strings.TrimSpace(*in.Username)
		in.Username = &u
	}
	if err := s.validate.Struct(in); err != nil {
		return identity.Account{}, toValidationError(err)
	}

	if in.Name == nil && in.Username == nil && in.Password == nil {
		return s.Get(ctx, id)
	}

	upd := identity.UpdateAccountInput{
		Name:     in.Name,
		Username: in.Username,
		Now:      s.now(),
	}
	if in.Password != nil {
		hash, err := s.hash(*in.Password)
		if err != nil {
			return identity.Account{}, err
		}
		upd.PasswordHash = hash
	}

	acc, err := s.store.UpdateAccount(ctx, id, upd)
	if err != nil {
		return identity.Account{}, mapStoreError("update account", err)
	}
	return acc, nil
}

// ChangePassword replaces the stored credential without touching the profile.
func (s *Service) ChangePassword(ctx context.Context, id, plain string) error {
	hash, err := s.hash(plain)
	if err != nil {
		return err
	}
	if err := s.store.SetPasswordHash(ctx, id, hash, s.now()); err != nil {
		return mapStoreError("set password", err)
	}
	return nil
}

// Delete removes an account. Deleting an id that does not exist succeeds;
// existed reports whether anything was removed.
func (s *Service) Delete(ctx context.Context, id string) (existed bool, err error) {
	if err := s.store.DeleteAccount(ctx, id); err != nil {
		if identity.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete account: %w", err)
	}
	return true, nil
}

func (s *Service) hash(plain string) (password.Encoded, error) {
	hash, err := s.hasher.Hash(plain)
	if err == nil {
		return hash, nil
	}
	switch {
	case errors.Is(err, password.ErrPasswordTooShort):
		return "", fieldError("password", "is too short")
	case errors.Is(err, password.ErrPasswordTooLong):
		return "", fieldError("password", "is too long")
	case errors.Is(err, password.ErrWeakPassword):
		return "", fieldError("password", "is too weak")
	default:
		return "", fmt.Errorf("%w: %w", ErrHashing, err)
	}
}

// mapStoreError translates identity errors into service kinds. Anything
// unrecognized stays an internal error.
func mapStoreError(op string, err error) error {
	switch {
	case identity.IsConflict(err):
		return &ConflictError{Field: identity.FieldOf(err)}
	case identity.IsNotFound(err):
		return ErrNotFound
	case identity.IsInvalidInput(err):
		if f := identity.FieldOf(err); f == "username" {
			return fieldError(f, "is invalid")
		}
		return &ValidationError{Fields: map[string]string{"body": "is invalid"}}
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
