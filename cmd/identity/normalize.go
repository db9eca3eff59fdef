package identity

import "strings"

// NormalizeUsername performs case-insensitive canonicalization.
// Uniqueness is enforced on this form.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := *p
	return &s
}
