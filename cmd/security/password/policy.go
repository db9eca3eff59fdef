package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// bcryptMaxBytes is the input length bcrypt consumes; longer input would be
// silently truncated, so it is refused up front.
const bcryptMaxBytes = 72

// commonPasswords are refused outright when RejectVeryWeak is set. Entries
// are lower case.
var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "passw0rd": {},
	"qwerty": {}, "qwerty123": {}, "qwertyuiop": {}, "asdfghjkl": {},
	"letmein": {}, "welcome": {}, "changeme": {}, "iloveyou": {},
	"admin": {}, "admin123": {}, "root": {}, "secret": {},
	"koach": {}, "koach123": {}, "koachkoach": {},
}

// Validate checks plain against the policy and the configured algorithm's
// input limits. Lengths are in runes; the bcrypt limit is in bytes.
func (c Config) Validate(plain string) error {
	n := utf8.RuneCountInString(plain)
	switch {
	case n == 0 || n < c.Policy.MinLength:
		return ErrPasswordTooShort
	case n > c.Policy.MaxLength:
		return ErrPasswordTooLong
	case c.Algorithm == AlgorithmBcrypt && len(plain) > bcryptMaxBytes:
		return ErrPasswordTooLong
	}

	if c.Policy.RejectVeryWeak && isVeryWeak(plain) {
		return ErrWeakPassword
	}
	return nil
}

// isVeryWeak flags the guessable shapes: a known common password, a single
// repeated character, a short PIN, or a straight keyboard-order run.
func isVeryWeak(plain string) bool {
	s := strings.ToLower(strings.TrimSpace(plain))
	if s == "" {
		return true
	}
	if _, ok := commonPasswords[s]; ok {
		return true
	}
	return isRepeated(s) || isShortPIN(s) || isStraightRun(s)
}

func isRepeated(s string) bool {
	first, _ := utf8.DecodeRuneInString(s)
	return strings.Trim(s, string(first)) == ""
}

func isShortPIN(s string) bool {
	if utf8.RuneCountInString(s) >= 12 {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0
}

// isStraightRun matches "abcdef", "123456", "987654" and the like.
func isStraightRun(s string) bool {
	rs := []rune(s)
	if len(rs) < 4 {
		return false
	}
	step := rs[1] - rs[0]
	if step != 1 && step != -1 {
		return false
	}
	for i := 2; i < len(rs); i++ {
		if rs[i]-rs[i-1] != step {
			return false
		}
	}
	return true
}
