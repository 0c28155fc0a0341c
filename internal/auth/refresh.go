package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/tphummel/fit-drive/internal/emailutil"
	"github.com/tphummel/fit-drive/internal/log"
	"github.com/tphummel/fit-drive/internal/storage"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

// Refresher renews stored access tokens with their refresh tokens.
type Refresher struct {
	client *Client
}

func NewRefresher(client *Client) *Refresher {
	return &Refresher{client: client}
}

// Refresh renews one provider's record for email.
func (r *Refresher) Refresh(ctx context.Context, email, providerName string) (storage.AuthorizationRecord, error) {
	p, err := r.client.provider(providerName)
	if err != nil {
		return storage.AuthorizationRecord{}, err
	}

	user, err := r.client.store.FindUser(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return storage.AuthorizationRecord{}, fmt.Errorf("%w: %s", ErrAuthorizationMissing, p.Name)
		}
		return storage.AuthorizationRecord{}, err
	}

	prev, err := storedRecord(user, p)
	if err != nil {
		return storage.AuthorizationRecord{}, err
	}
	return r.refresh(ctx, p, prev)
}

// RefreshAll renews every configured provider for email. Preconditions are
// checked for all providers before any network call. The providers are then
// refreshed concurrently; each success is persisted on its own, but any
// failure makes the whole call fail. Records saved before the failure are
// not rolled back. Errors are joined in provider order.
func (r *Refresher) RefreshAll(ctx context.Context, email string) error {
	user, err := r.client.store.FindUser(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%w: no user record", ErrAuthorizationMissing)
		}
		return err
	}

	providers := r.client.providers.All()
	prev := make([]storage.AuthorizationRecord, len(providers))
	for i, p := range providers {
		rec, err := storedRecord(user, p)
		if err != nil {
			log.LogWarnWithFields("refresh", "Refresh precondition failed", map[string]any{
				"provider": p.Name,
				"domain":   emailutil.ExtractDomain(email),
			})
			return err
		}
		prev[i] = rec
	}

	errs := make([]error, len(providers))
	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			_, errs[i] = r.refresh(ctx, p, prev[i])
			return errs[i]
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func storedRecord(user *storage.User, p Provider) (storage.AuthorizationRecord, error) {
	rec, ok := user.Authorization(p.Name)
	if !ok {
		return storage.AuthorizationRecord{}, fmt.Errorf("%w: %s", ErrAuthorizationMissing, p.Name)
	}
	if rec.RefreshToken == "" {
		return storage.AuthorizationRecord{}, fmt.Errorf("%w: %s has no refresh token", ErrAuthorizationMissing, p.Name)
	}
	return rec, nil
}

func (r *Refresher) refresh(ctx context.Context, p Provider, prev storage.AuthorizationRecord) (storage.AuthorizationRecord, error) {
	pctx, cancel := r.client.providerContext(ctx)
	defer cancel()

	// An empty access token forces the source to hit the token endpoint.
	src := p.oauth2Config(r.client.RedirectURL(p.Name)).TokenSource(pctx, &oauth2.Token{
		RefreshToken: prev.RefreshToken,
	})
	tok, err := src.Token()
	if err != nil {
		perr := classify(KindRefreshFailed, p.Name, err)
		log.LogErrorWithFields("refresh", "Failed to refresh token", map[string]any{
			"provider": p.Name,
			"error":    perr.Error(),
		})
		return storage.AuthorizationRecord{}, perr
	}

	next := prev
	next.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		next.RefreshToken = tok.RefreshToken
	}
	if tok.TokenType != "" {
		next.TokenType = tok.TokenType
	}
	if scope := extraString(tok, "scope"); scope != "" {
		next.Scope = scope
	}
	if uid := extraString(tok, "user_id"); uid != "" {
		next.ExternalUserID = uid
	}
	next.ExpiresAt = tok.Expiry
	next.UpdatedAt = r.client.now()

	if err := r.client.store.SaveAuthorization(pctx, next); err != nil {
		return storage.AuthorizationRecord{}, fmt.Errorf("saving refreshed %s authorization: %w", p.Name, err)
	}

	log.LogInfoWithFields("refresh", "Token refreshed", map[string]any{
		"provider":        p.Name,
		"domain":          emailutil.ExtractDomain(prev.OwnerEmail),
		"refresh_rotated": tok.RefreshToken != "" && tok.RefreshToken != prev.RefreshToken,
	})
	return next, nil
}
