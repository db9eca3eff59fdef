package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"koach/cmd/internal/accounts"
	"koach/cmd/internal/telemetry"
)

// Auth audit events. Each one is a structured log line plus a counter.
const (
	eventSignup = "signup"
	eventLogin  = "login"
	eventUpdate = "update"
	eventDelete = "delete"
)

func (h *Handler) auditSignup(r *http.Request, accountID string, err error) {
	if err != nil {
		h.audit(r, eventSignup, telemetry.ResultFail, "reason", failureReason(err))
		return
	}
	h.audit(r, eventSignup, telemetry.ResultOK, "account_id", accountID)
}

func (h *Handler) auditLoginFailed(r *http.Request, username string) {
	h.audit(r, eventLogin, telemetry.ResultFail, "identifier", username)
}

func (h *Handler) auditLoginSuccess(r *http.Request, accountID string) {
	h.audit(r, eventLogin, telemetry.ResultOK, "account_id", accountID)
}

func (h *Handler) auditUpdate(r *http.Request, actorID, targetID string, passwordChanged bool) {
	h.audit(r, eventUpdate, telemetry.ResultOK,
		"actor_id", actorID,
		"account_id", targetID,
		"password_changed", passwordChanged,
	)
}

func (h *Handler) auditDelete(r *http.Request, actorID, targetID string, existed bool) {
	h.audit(r, eventDelete, telemetry.ResultOK,
		"actor_id", actorID,
		"account_id", targetID,
		"existed", existed,
	)
}

func (h *Handler) audit(r *http.Request, event, result string, attrs ...any) {
	h.metrics.AuthEvent(event, result)

	level := slog.LevelInfo
	if result != telemetry.ResultOK {
		level = slog.LevelWarn
	}

	args := make([]any, 0, len(attrs)+6)
	if ip := clientIP(r, h.cfg.TrustProxy); ip != nil {
		args = append(args, "ip", ip.String())
	}
	if ua := strings.TrimSpace(r.UserAgent()); ua != "" {
		args = append(args, "user_agent", ua)
	}
	if id := middleware.GetReqID(r.Context()); id != "" {
		args = append(args, "request_id", id)
	}
	args = append(args, attrs...)

	h.log.Log(r.Context(), level, "auth."+event+"."+result, args...)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, accounts.ErrValidation):
		return "invalid_input"
	case errors.Is(err, accounts.ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
