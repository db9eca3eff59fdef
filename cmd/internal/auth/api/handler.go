package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"koach/cmd/identity"
	"koach/cmd/internal/accounts"
	"koach/cmd/internal/telemetry"
	"koach/cmd/security/token"
)

// AccountService is the account flow surface the HTTP layer drives.
type AccountService interface {
	TokenResolver
	Signup(ctx context.Context, in accounts.SignupInput) (accounts.Session, error)
	Login(ctx context.Context, in accounts.LoginInput) (accounts.Session, error)
	List(ctx context.Context) ([]identity.Account, error)
	Get(ctx context.Context, id string) (identity.Account, error)
	Update(ctx context.Context, id string, in accounts.UpdateInput) (identity.Account, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Handler wires the /v1 and /v2 account endpoints to an AccountService.
type Handler struct {
	log     *slog.Logger
	cfg     Config
	svc     AccountService
	auth    *Authenticator
	metrics *telemetry.Metrics
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithMetrics records auth events on m.
func WithMetrics(m *telemetry.Metrics) HandlerOption {
	return func(h *Handler) {
		if h == nil || m == nil {
			return
		}
		h.metrics = m
	}
}

// NewHandler constructs a Handler.
func NewHandler(log *slog.Logger, svc AccountService, cfg Config, opts ...HandlerOption) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("authapi: nil account service")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	h := &Handler{
		log:  log,
		cfg:  cfg,
		svc:  svc,
		auth: NewAuthenticator(log, svc),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register mounts the account routes on r.
//
// v1 lets any signed-in account edit or delete any account. v2 keeps the
// same reads but restricts mutations to the caller's own account and moves
// password changes out of the profile update.
func (h *Handler) Register(r chi.Router) {
	if h == nil || r == nil {
		return
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/users", h.handleSignup)
		r.Post("/auth", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(h.auth.Require)
			r.Get("/users", h.handleList)
			r.Get("/users/{id}", h.handleGet)
			r.Put("/users/{id}", h.handleUpdate(false))
			r.Delete("/users/{id}", h.handleDelete(false))
		})
	})

	r.Route("/v2", func(r chi.Router) {
		r.Use(h.auth.Require)
		r.Get("/users", h.handleList)
		r.Get("/users/{id}", h.handleGet)
		r.Put("/users/{id}", h.handleUpdate(true))
		r.Delete("/users/{id}", h.handleDelete(true))
	})
}

// ---- handlers ----

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	sess, err := h.svc.Signup(r.Context(), accounts.SignupInput{
		Name:     req.User.Name,
		Username: derefOr(req.User.Username, ""),
		Password: derefOr(req.User.Password, ""),
	})
	h.auditSignup(r, sess.Account.ID, err)
	if err != nil {
		h.writeServiceError(w, "signup", err)
		return
	}

	w.Header().Set("Authorization", token.AuthorizationHeader(sess.Token))
	writeJSON(w, http.StatusCreated, sessionResponse{User: toUserResponse(sess.Account), Token: sess.Token})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	sess, err := h.svc.Login(r.Context(), accounts.LoginInput{Username: req.Username, Password: req.Password})
	if err != nil {
		if errors.Is(err, accounts.ErrUnauthenticated) {
			h.auditLoginFailed(r, req.Username)
		}
		h.writeServiceError(w, "login", err)
		return
	}
	h.auditLoginSuccess(r, sess.Account.ID)

	w.Header().Set("Authorization", token.AuthorizationHeader(sess.Token))
	writeJSON(w, http.StatusOK, sessionResponse{User: toUserResponse(sess.Account), Token: sess.Token})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		h.writeServiceError(w, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, toUsersResponse(list))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	acc, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, userEnvelope{User: toUserResponse(acc)})
}

func (h *Handler) handleUpdate(selfOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		caller, _ := AccountFromContext(r.Context())
		if selfOnly && caller.ID != id {
			h.writeServiceError(w, "update", accounts.ErrForbidden)
			return
		}

		var req updateRequest
		if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
			writeDecodeError(w, err)
			return
		}
		if selfOnly && req.User.Password != nil {
			writeFieldErrors(w, map[string]string{"password": "cannot be changed through this endpoint"})
			return
		}

		acc, err := h.svc.Update(r.Context(), id, accounts.UpdateInput{
			Name:     req.User.Name,
			Username: req.User.Username,
			Password: req.User.Password,
		})
		if err != nil {
			h.writeServiceError(w, "update", err)
			return
		}
		h.auditUpdate(r, caller.ID, id, req.User.Password != nil)
		writeJSON(w, http.StatusOK, userEnvelope{User: toUserResponse(acc)})
	}
}

func (h *Handler) handleDelete(selfOnly bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		caller, _ := AccountFromContext(r.Context())
		if selfOnly && caller.ID != id {
			h.writeServiceError(w, "delete", accounts.ErrForbidden)
			return
		}

		existed, err := h.svc.Delete(r.Context(), id)
		if err != nil {
			h.writeServiceError(w, "delete", err)
			return
		}
		h.auditDelete(r, caller.ID, id, existed)
		writeJSON(w, http.StatusOK, deleteResponse{Success: true})
	}
}

// writeServiceError maps service error kinds to status codes. Internal
// errors are logged and answered with a generic body.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	var (
		ve *accounts.ValidationError
		ce *accounts.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		writeFieldErrors(w, ve.Fields)
	case errors.As(err, &ce):
		writeError(w, http.StatusConflict, "conflict", ce.Field+" already taken")
	case errors.Is(err, accounts.ErrUnauthenticated):
		writeUnauthorized(w)
	case errors.Is(err, accounts.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "not allowed to modify this account")
	case errors.Is(err, accounts.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "user not found")
	default:
		h.log.Error("accounts."+op+".fail", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}
