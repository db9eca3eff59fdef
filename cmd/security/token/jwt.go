package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload.
type Claims struct {
	AccountID string `json:"id"`
	jwt.RegisteredClaims
}

// Issuer mints tokens for an account id.
type Issuer interface {
	Issue(accountID string) (string, error)
}

// Verifier recovers the account id from a presented token.
type Verifier interface {
	Verify(token string) (string, error)
}

// Manager is an HS256 Issuer and Verifier. Safe for concurrent use.
type Manager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

var (
	_ Issuer   = (*Manager)(nil)
	_ Verifier = (*Manager)(nil)
)

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager validates cfg and builds a Manager.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}

	m := &Manager{
		secret: append([]byte(nil), cfg.Secret...),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	}
	if m.ttl > 0 {
		parserOpts = append(parserOpts, jwt.WithExpirationRequired())
	}
	if m.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(m.issuer))
	}
	m.parser = jwt.NewParser(parserOpts...)

	return m, nil
}

// Issue signs a token bound to accountID.
func (m *Manager) Issue(accountID string) (string, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", errors.New("token: empty account id")
	}

	now := m.now().UTC()
	claims := Claims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   m.issuer,
		},
	}
	if m.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Verify checks the signature and claims and returns the account id.
// Every failure is ErrInvalidToken.
func (m *Manager) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	var claims Claims
	tok, err := m.parser.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil || tok == nil || !tok.Valid {
		return "", ErrInvalidToken
	}

	id := strings.TrimSpace(claims.AccountID)
	if id == "" {
		return "", ErrInvalidToken
	}
	return id, nil
}
