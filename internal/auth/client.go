package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tphummel/fit-drive/internal/crypto"
	"github.com/tphummel/fit-drive/internal/emailutil"
	"github.com/tphummel/fit-drive/internal/log"
	"github.com/tphummel/fit-drive/internal/storage"
	"golang.org/x/oauth2"
)

const (
	// OAuthStateExpiry bounds how long a user may take at the provider's consent screen.
	OAuthStateExpiry = 10 * time.Minute

	DefaultProviderTimeout = 30 * time.Second
)

// Client drives the authorization-code flow against the configured providers
// and persists the resulting records.
type Client struct {
	providers   *Registry
	store       storage.UserStore
	baseURL     string
	httpClient  *http.Client
	timeout     time.Duration
	stateSigner crypto.TokenSigner
	now         func() time.Time
}

type oauthState struct {
	Provider string `json:"provider"`
	Email    string `json:"email"`
	Nonce    string `json:"nonce"`
}

// NewClient creates an OAuth client. Every provider call is bounded by timeout.
func NewClient(providers *Registry, store storage.UserStore, baseURL string, signingKey []byte, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &Client{
		providers:   providers,
		store:       store,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		timeout:     timeout,
		stateSigner: crypto.NewTokenSigner(signingKey, OAuthStateExpiry),
		now:         time.Now,
	}
}

// Providers returns the registry the client was built with.
func (c *Client) Providers() *Registry {
	return c.providers
}

func (c *Client) provider(name string) (Provider, error) {
	p, ok := c.providers.Get(name)
	if !ok {
		return Provider{}, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// RedirectURL is the callback registered with the provider.
func (c *Client) RedirectURL(providerName string) string {
	return c.baseURL + "/authorize-verify/" + providerName
}

// providerContext detaches ctx from the inbound request so a client
// disconnect does not abandon a half-finished exchange, and bounds it.
func (c *Client) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient), cancel
}

// AuthorizeURL builds the provider authorization URL for the signed-in user.
// It does not contact the provider.
func (c *Client) AuthorizeURL(providerName, email string) (string, error) {
	p, err := c.provider(providerName)
	if err != nil {
		return "", err
	}

	nonce, err := crypto.GenerateSecureToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}

	state, err := c.stateSigner.Sign(oauthState{Provider: p.Name, Email: email, Nonce: nonce})
	if err != nil {
		return "", fmt.Errorf("failed to sign state: %w", err)
	}

	opts := make([]oauth2.AuthCodeOption, 0, len(p.AuthURLParams))
	for k, v := range p.AuthURLParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}

	authURL := p.oauth2Config(c.RedirectURL(p.Name)).AuthCodeURL(state, opts...)

	log.LogDebugWithFields("oauth", "Built authorization URL", map[string]any{
		"provider": p.Name,
		"redirect": c.RedirectURL(p.Name),
	})
	return authURL, nil
}

// VerifyState checks a state value returned by the provider against the
// callback's provider and the session user.
func (c *Client) VerifyState(state, providerName, email string) error {
	var s oauthState
	if err := c.stateSigner.Verify(state, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if s.Provider != providerName || s.Email != email {
		return fmt.Errorf("%w: state issued for a different provider or user", ErrInvalidState)
	}
	return nil
}

// Exchange trades an authorization code for tokens and saves the record,
// replacing any earlier record for (email, provider). A response without a
// refresh token keeps the one already stored.
func (c *Client) Exchange(ctx context.Context, providerName, code, email string) (storage.AuthorizationRecord, error) {
	p, err := c.provider(providerName)
	if err != nil {
		return storage.AuthorizationRecord{}, err
	}

	pctx, cancel := c.providerContext(ctx)
	defer cancel()

	tok, err := p.oauth2Config(c.RedirectURL(p.Name)).Exchange(pctx, code,
		oauth2.SetAuthURLParam("client_id", p.ClientID))
	if err != nil {
		perr := classify(KindExchangeFailed, p.Name, err)
		log.LogErrorWithFields("oauth", "Failed to exchange code for token", map[string]any{
			"provider": p.Name,
			"error":    perr.Error(),
		})
		return storage.AuthorizationRecord{}, perr
	}

	rec := storage.AuthorizationRecord{
		Provider:       p.Name,
		OwnerEmail:     email,
		AccessToken:    tok.AccessToken,
		RefreshToken:   tok.RefreshToken,
		Scope:          extraString(tok, "scope"),
		TokenType:      tok.TokenType,
		ExternalUserID: extraString(tok, "user_id"),
		ExpiresAt:      tok.Expiry,
		UpdatedAt:      c.now(),
	}

	if rec.RefreshToken == "" {
		prev, err := c.storedRefreshToken(pctx, p.Name, email)
		if err != nil {
			log.LogErrorWithFields("oauth", "Failed to load previous authorization", map[string]any{
				"provider": p.Name,
				"error":    err.Error(),
			})
			return storage.AuthorizationRecord{}, fmt.Errorf("loading %s authorization: %w", p.Name, err)
		}
		rec.RefreshToken = prev
	}

	if err := c.store.SaveAuthorization(pctx, rec); err != nil {
		log.LogErrorWithFields("oauth", "Failed to store authorization", map[string]any{
			"provider": p.Name,
			"error":    err.Error(),
		})
		return storage.AuthorizationRecord{}, fmt.Errorf("saving %s authorization: %w", p.Name, err)
	}

	log.LogInfoWithFields("oauth", "Authorization stored", map[string]any{
		"provider":    p.Name,
		"domain":      emailutil.ExtractDomain(email),
		"has_refresh": rec.RefreshToken != "",
	})
	return rec, nil
}

// storedRefreshToken returns the refresh token already held for
// (email, provider), or "" when there is none.
func (c *Client) storedRefreshToken(ctx context.Context, providerName, email string) (string, error) {
	user, err := c.store.FindUser(ctx, email)
	if errors.Is(err, storage.ErrUserNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	prev, ok := user.Authorization(providerName)
	if !ok {
		return "", nil
	}
	return prev.RefreshToken, nil
}

// extraString reads a non-standard token response field.
func extraString(tok *oauth2.Token, key string) string {
	switch v := tok.Extra(key).(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
