package storage

import (
	"context"
	"errors"
	"time"
)

// ErrUserNotFound is returned when a user doesn't exist
var ErrUserNotFound = errors.New("user not found")

// ErrUnavailable wraps backend failures (network, driver, encoding) so the
// HTTP layer can tell them apart from missing data.
var ErrUnavailable = errors.New("store unavailable")

// AuthorizationRecord is the stored OAuth2 credential set for one
// (user, provider) pair.
type AuthorizationRecord struct {
	Provider       string    `json:"name"`
	OwnerEmail     string    `json:"email"`
	AccessToken    string    `json:"accessToken"`
	RefreshToken   string    `json:"refreshToken,omitempty"`
	Scope          string    `json:"scope,omitempty"`
	TokenType      string    `json:"tokenType,omitempty"`
	ExternalUserID string    `json:"userId,omitempty"`
	ExpiresAt      time.Time `json:"expiresAt,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// User is identified by email exactly as entered.
type User struct {
	Email          string                          `json:"email"`
	CreatedAt      time.Time                       `json:"createdAt"`
	Authorizations map[string]AuthorizationRecord `json:"authorizations"`
}

// Authorization returns the record for provider, if any.
func (u *User) Authorization(provider string) (AuthorizationRecord, bool) {
	if u == nil || u.Authorizations == nil {
		return AuthorizationRecord{}, false
	}
	rec, ok := u.Authorizations[provider]
	return rec, ok
}

// UserStore persists users and their provider authorizations.
type UserStore interface {
	// FindUser returns ErrUserNotFound when no user has this email.
	FindUser(ctx context.Context, email string) (*User, error)
	// CreateUser creates the user, or returns the existing one.
	CreateUser(ctx context.Context, email string) (*User, error)
	// DeleteUser removes the user and all of its authorization records.
	DeleteUser(ctx context.Context, email string) error
	// SaveAuthorization overwrites the record for (OwnerEmail, Provider).
	// The owner must exist.
	SaveAuthorization(ctx context.Context, record AuthorizationRecord) error
}

// LoginTokenLedger remembers which login tokens have been exchanged.
type LoginTokenLedger interface {
	// ConsumeLoginToken records id and reports whether this was its first use.
	ConsumeLoginToken(ctx context.Context, id string, expiresAt time.Time) (bool, error)
	// CleanupExpiredLoginTokens forgets ids whose token has expired anyway.
	CleanupExpiredLoginTokens(ctx context.Context) (int, error)
}

// Storage is everything the service persists.
type Storage interface {
	UserStore
	LoginTokenLedger
	Close() error
}
