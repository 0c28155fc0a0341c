// Package login runs the magic-link flow: an emailed, short-lived login
// token is exchanged once for a session token.
package login

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tphummel/fit-drive/internal/email"
	"github.com/tphummel/fit-drive/internal/emailutil"
	"github.com/tphummel/fit-drive/internal/log"
	"github.com/tphummel/fit-drive/internal/storage"
	"github.com/tphummel/fit-drive/internal/token"
)

var (
	ErrEmailRequired  = errors.New("email is required")
	ErrEmailMalformed = errors.New("email is malformed")
	ErrTokenUsed      = errors.New("login token already used")
)

// TokenIssuer is the part of the credential codec the login flow needs.
type TokenIssuer interface {
	IssueLoginToken(email string) (string, error)
	IssueSessionToken(email string) (string, error)
	VerifyLogin(tokenString string) (token.Payload, error)
}

// Service orchestrates login requests and verifications.
type Service struct {
	users    storage.UserStore
	ledger   storage.LoginTokenLedger
	tokens   TokenIssuer
	sender   email.Sender
	baseURL  string
	loginTTL time.Duration
}

// NewService creates a login service. ledger may be nil, in which case
// login tokens stay reusable until they expire.
func NewService(users storage.UserStore, ledger storage.LoginTokenLedger, tokens TokenIssuer, sender email.Sender, baseURL string, loginTTL time.Duration) *Service {
	return &Service{
		users:    users,
		ledger:   ledger,
		tokens:   tokens,
		sender:   sender,
		baseURL:  baseURL,
		loginTTL: loginTTL,
	}
}

// ValidateEmail checks a submitted address before anything else happens.
func ValidateEmail(address string) error {
	if address == "" {
		return ErrEmailRequired
	}
	if !emailutil.IsValid(address) {
		return ErrEmailMalformed
	}
	return nil
}

// RequestLogin makes sure the user exists and mails a login link. The result
// is the same for new and existing users.
func (s *Service) RequestLogin(ctx context.Context, address string) error {
	if err := ValidateEmail(address); err != nil {
		return err
	}

	if err := s.ensureUser(ctx, address); err != nil {
		return err
	}

	tok, err := s.tokens.IssueLoginToken(address)
	if err != nil {
		return fmt.Errorf("issuing login token: %w", err)
	}

	link, err := email.LoginLink(s.baseURL, tok)
	if err != nil {
		return err
	}
	msg, err := email.LoginMessage(address, link, s.loginTTL.String())
	if err != nil {
		return err
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending login email: %w", err)
	}

	log.LogInfoWithFields("login", "Login link sent", map[string]any{
		"domain": emailutil.ExtractDomain(address),
	})
	return nil
}

func (s *Service) ensureUser(ctx context.Context, address string) error {
	_, err := s.users.FindUser(ctx, address)
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return fmt.Errorf("finding user: %w", err)
	}

	if _, err := s.users.CreateUser(ctx, address); err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	log.LogInfoWithFields("login", "User created", map[string]any{
		"domain": emailutil.ExtractDomain(address),
	})
	return nil
}

// VerifyLogin exchanges a login token for a session token. Token failures
// wrap token.ErrMalformed, token.ErrInvalidSignature, token.ErrExpired or
// ErrTokenUsed.
func (s *Service) VerifyLogin(ctx context.Context, loginToken string) (sessionToken, address string, err error) {
	payload, err := s.tokens.VerifyLogin(loginToken)
	if err != nil {
		return "", "", err
	}

	if s.ledger != nil && payload.ID != "" {
		first, err := s.ledger.ConsumeLoginToken(ctx, payload.ID, payload.ExpiresAt)
		if err != nil {
			return "", "", fmt.Errorf("recording login token: %w", err)
		}
		if !first {
			return "", "", ErrTokenUsed
		}
	}

	sessionToken, err = s.tokens.IssueSessionToken(payload.Email)
	if err != nil {
		return "", "", fmt.Errorf("issuing session token: %w", err)
	}

	log.LogInfoWithFields("login", "Login verified", map[string]any{
		"domain": emailutil.ExtractDomain(payload.Email),
	})
	return sessionToken, payload.Email, nil
}

// IsTokenRejection reports whether err means the presented login token is
// not acceptable, as opposed to a backend failure.
func IsTokenRejection(err error) bool {
	return errors.Is(err, token.ErrMalformed) ||
		errors.Is(err, token.ErrInvalidSignature) ||
		errors.Is(err, token.ErrExpired) ||
		errors.Is(err, ErrTokenUsed)
}
