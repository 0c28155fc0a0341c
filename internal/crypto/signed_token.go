package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidFormat    = errors.New("invalid token format")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrTokenExpired     = errors.New("token expired")
)

// TokenSigner provides HMAC-signed JSON tokens with optional expiry.
// Used for OAuth state values that must round-trip through a provider.
type TokenSigner struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

// NewTokenSigner creates a new token signer
func NewTokenSigner(signingKey []byte, ttl time.Duration) TokenSigner {
	return TokenSigner{
		signingKey: signingKey,
		ttl:        ttl,
		now:        time.Now,
	}
}

// WithClock returns a copy of the signer that reads time from now.
func (ts TokenSigner) WithClock(now func() time.Time) TokenSigner {
	ts.now = now
	return ts
}

type tokenData struct {
	Data      json.RawMessage `json:"data"`
	ExpiresAt time.Time       `json:"expires_at,omitempty"`
}

// Sign marshals v to JSON, wraps it with an expiry and appends an HMAC.
func (ts *TokenSigner) Sign(v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal data: %w", err)
	}

	td := tokenData{Data: payload}
	if ts.ttl > 0 {
		td.ExpiresAt = ts.now().Add(ts.ttl)
	}

	raw, err := json.Marshal(td)
	if err != nil {
		return "", fmt.Errorf("failed to marshal token data: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(raw)
	return encoded + "." + ts.mac(encoded), nil
}

// Verify validates the signature, checks expiry, and unmarshals into v.
func (ts *TokenSigner) Verify(token string, v any) error {
	encoded, sig, ok := strings.Cut(token, ".")
	if !ok || encoded == "" || sig == "" {
		return ErrInvalidFormat
	}

	if !hmac.Equal([]byte(sig), []byte(ts.mac(encoded))) {
		return ErrInvalidSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	var td tokenData
	if err := json.Unmarshal(raw, &td); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	if !td.ExpiresAt.IsZero() && ts.now().After(td.ExpiresAt) {
		return ErrTokenExpired
	}

	if err := json.Unmarshal(td.Data, v); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}
	return nil
}

func (ts *TokenSigner) mac(data string) string {
	h := hmac.New(sha256.New, ts.signingKey)
	h.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
