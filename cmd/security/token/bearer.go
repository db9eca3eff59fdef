package token

import "strings"

// Scheme is the Authorization header scheme tokens travel under.
const Scheme = "Bearer"

// BearerToken extracts the token from an Authorization header value.
// A blank header, a header without the Bearer scheme, and an empty token
// all return "".
func BearerToken(header string) string {
	raw := strings.TrimSpace(header)
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], Scheme) {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AuthorizationHeader formats tok for the Authorization header.
func AuthorizationHeader(tok string) string {
	return Scheme + " " + tok
}
