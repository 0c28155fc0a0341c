// Package token issues and verifies the two signed credentials of the login
// flow: short-lived login tokens mailed to the user and the longer-lived
// session tokens carried in the session cookie. Each kind has its own secret,
// so a login token never verifies as a session token.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultLoginTTL   = 10 * time.Minute
	DefaultSessionTTL = 24 * time.Hour
)

// Verification failure reasons. Callers log these; clients only ever see
// a generic unauthorized response.
var (
	ErrMalformed        = errors.New("token malformed")
	ErrInvalidSignature = errors.New("token signature invalid")
	ErrExpired          = errors.New("token expired")
)

// Kind selects the secret and lifetime of a token.
type Kind int

const (
	KindLogin Kind = iota
	KindSession
)

func (k Kind) String() string {
	switch k {
	case KindLogin:
		return "login"
	case KindSession:
		return "session"
	default:
		return "unknown"
	}
}

// Payload is the decoded content of a verified token.
type Payload struct {
	Email     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	loginKey   []byte
	sessionKey []byte
	loginTTL   time.Duration
	sessionTTL time.Duration
	now        func() time.Time
}

// Option customizes an Issuer.
type Option func(*Issuer)

// WithTTLs overrides the default token lifetimes. Zero values keep the default.
func WithTTLs(login, session time.Duration) Option {
	return func(i *Issuer) {
		if login > 0 {
			i.loginTTL = login
		}
		if session > 0 {
			i.sessionTTL = session
		}
	}
}

// WithClock sets the time source used for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer creates an Issuer. The two secrets must be non-empty and distinct.
func NewIssuer(loginSecret, sessionSecret []byte, opts ...Option) (*Issuer, error) {
	if len(loginSecret) == 0 || len(sessionSecret) == 0 {
		return nil, errors.New("login and session secrets are required")
	}
	if string(loginSecret) == string(sessionSecret) {
		return nil, errors.New("login and session secrets must differ")
	}

	i := &Issuer{
		loginKey:   loginSecret,
		sessionKey: sessionSecret,
		loginTTL:   DefaultLoginTTL,
		sessionTTL: DefaultSessionTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// SessionTTL is the lifetime of issued session tokens.
func (i *Issuer) SessionTTL() time.Duration {
	return i.sessionTTL
}

func (i *Issuer) IssueLoginToken(email string) (string, error) {
	return i.Issue(email, KindLogin)
}

func (i *Issuer) IssueSessionToken(email string) (string, error) {
	return i.Issue(email, KindSession)
}

// Issue signs a token of the given kind for email.
func (i *Issuer) Issue(email string, kind Kind) (string, error) {
	key, ttl, err := i.params(kind)
	if err != nil {
		return "", err
	}

	now := i.now()
	c := claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", kind, err)
	}
	return signed, nil
}

func (i *Issuer) VerifyLogin(tokenString string) (Payload, error) {
	return i.Verify(tokenString, KindLogin)
}

func (i *Issuer) VerifySession(tokenString string) (Payload, error) {
	return i.Verify(tokenString, KindSession)
}

// Verify checks signature and expiry against the secret of kind. The returned
// error wraps exactly one of ErrMalformed, ErrInvalidSignature or ErrExpired.
func (i *Issuer) Verify(tokenString string, kind Kind) (Payload, error) {
	key, _, err := i.params(kind)
	if err != nil {
		return Payload{}, err
	}

	var c claims
	_, err = jwt.ParseWithClaims(tokenString, &c,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Payload{}, classify(err)
	}
	if c.Email == "" {
		return Payload{}, fmt.Errorf("%w: missing email claim", ErrMalformed)
	}

	p := Payload{
		Email:     c.Email,
		ID:        c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}
	if c.IssuedAt != nil {
		p.IssuedAt = c.IssuedAt.Time
	}
	return p, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

func (i *Issuer) params(kind Kind) ([]byte, time.Duration, error) {
	switch kind {
	case KindLogin:
		return i.loginKey, i.loginTTL, nil
	case KindSession:
		return i.sessionKey, i.sessionTTL, nil
	default:
		return nil, 0, fmt.Errorf("unknown token kind %d", kind)
	}
}
