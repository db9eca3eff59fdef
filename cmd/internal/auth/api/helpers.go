package authapi

import (
	"net"
	"net/http"
	"strings"

	"koach/cmd/identity"
)

func toUserResponse(a identity.Account) userResponse {
	return userResponse{
		ID:        a.ID,
		Name:      a.Name,
		Username:  a.Username,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func toUsersResponse(in []identity.Account) usersResponse {
	out := make([]userResponse, 0, len(in))
	for _, a := range in {
		out = append(out, toUserResponse(a))
	}
	return usersResponse{Users: out}
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
