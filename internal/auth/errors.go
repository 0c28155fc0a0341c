package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"golang.org/x/oauth2"
)

var (
	ErrUnknownProvider      = errors.New("unknown provider")
	ErrAuthorizationMissing = errors.New("authorization missing")
	ErrInvalidState         = errors.New("invalid oauth state")
)

type ErrorKind string

const (
	KindExchangeFailed    ErrorKind = "provider_exchange_failed"
	KindRefreshFailed     ErrorKind = "provider_refresh_failed"
	KindResponseMalformed ErrorKind = "provider_response_malformed"
)

// ProviderError describes a failed call to a provider token endpoint.
// StatusCode is 0 when no HTTP response was received.
type ProviderError struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s returned status %d", e.Kind, e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a ProviderError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == kind
}

// classify maps an x/oauth2 token error. Status errors and transport
// failures get kind; anything else means the body was not a token.
func classify(kind ErrorKind, provider string, err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		status := 0
		if rErr.Response != nil {
			status = rErr.Response.StatusCode
		}
		return &ProviderError{Kind: kind, Provider: provider, StatusCode: status, Err: err}
	}

	var uErr *url.Error
	if errors.As(err, &uErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ProviderError{Kind: kind, Provider: provider, Err: err}
	}

	return &ProviderError{Kind: KindResponseMalformed, Provider: provider, Err: err}
}
