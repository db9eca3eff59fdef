package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"koach/cmd/identity"
	"koach/cmd/internal/accounts"
	"koach/cmd/security/token"
)

// TokenResolver maps a presented bearer token to a live account.
type TokenResolver interface {
	Authenticate(ctx context.Context, tok string) (identity.Account, error)
}

// Authenticator guards routes that need a signed-in account.
type Authenticator struct {
	log      *slog.Logger
	resolver TokenResolver
}

// NewAuthenticator returns an Authenticator backed by resolver.
func NewAuthenticator(log *slog.Logger, resolver TokenResolver) *Authenticator {
	if log == nil {
		log = slog.Default()
	}
	return &Authenticator{log: log, resolver: resolver}
}

type accountCtxKey struct{}

// AccountFromContext returns the account attached by Require.
func AccountFromContext(ctx context.Context) (identity.Account, bool) {
	acc, ok := ctx.Value(accountCtxKey{}).(identity.Account)
	return acc, ok
}

func withAccount(ctx context.Context, acc identity.Account) context.Context {
	return context.WithValue(ctx, accountCtxKey{}, acc)
}

// Require rejects requests without a valid bearer token for an existing
// account. A missing header, a non-Bearer scheme, a bad token and a deleted
// account all get the same 401 body.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := token.BearerToken(r.Header.Get("Authorization"))
		acc, err := a.resolver.Authenticate(r.Context(), tok)
		if err != nil {
			if errors.Is(err, accounts.ErrUnauthenticated) {
				writeUnauthorized(w)
				return
			}
			a.log.Error("auth.authenticate.fail", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "internal error")
			return
		}
		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), acc)))
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", token.Scheme)
	writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
}
