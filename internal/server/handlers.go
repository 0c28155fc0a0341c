package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tphummel/fit-drive/internal/auth"
	"github.com/tphummel/fit-drive/internal/cookie"
	"github.com/tphummel/fit-drive/internal/emailutil"
	"github.com/tphummel/fit-drive/internal/log"
	"github.com/tphummel/fit-drive/internal/respond"
	"github.com/tphummel/fit-drive/internal/storage"
)

// LoginService is the login flow as seen by the HTTP layer
type LoginService interface {
	RequestLogin(ctx context.Context, email string) error
	VerifyLogin(ctx context.Context, loginToken string) (sessionToken, email string, err error)
}

// Authorizer runs the provider authorization-code flow
type Authorizer interface {
	AuthorizeURL(providerName, email string) (string, error)
	VerifyState(state, providerName, email string) error
	Exchange(ctx context.Context, providerName, code, email string) (storage.AuthorizationRecord, error)
}

// AuthorizationRefresher refreshes every stored authorization of a user
type AuthorizationRefresher interface {
	RefreshAll(ctx context.Context, email string) error
}

// Handlers serves the fit-drive web surface
type Handlers struct {
	login      LoginService
	users      storage.UserStore
	providers  *auth.Registry
	authorizer Authorizer
	refresher  AuthorizationRefresher
	loginTTL   time.Duration
	sessionTTL time.Duration
	now        func() time.Time
}

// NewHandlers creates the HTTP handlers
func NewHandlers(
	loginService LoginService,
	users storage.UserStore,
	providers *auth.Registry,
	authorizer Authorizer,
	refresher AuthorizationRefresher,
	loginTTL, sessionTTL time.Duration,
) *Handlers {
	return &Handlers{
		login:      loginService,
		users:      users,
		providers:  providers,
		authorizer: authorizer,
		refresher:  refresher,
		loginTTL:   loginTTL,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// Landing renders the public landing page
func (h *Handlers) Landing(w http.ResponseWriter, r *http.Request) {
	render(w, "landing", PageData{Title: "Welcome", Flash: popFlash(w, r)})
}

// LoginPage renders the email form
func (h *Handlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	render(w, "login", PageData{Title: "Log in", Flash: popFlash(w, r), LoginTTL: h.loginTTL.String()})
}

// submittedEmail reads the email from a form or JSON body
func submittedEmail(w http.ResponseWriter, r *http.Request) (string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
			return "", err
		}
		return body.Email, nil
	}
	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.PostFormValue("email"), nil
}

// RequestLogin handles POST /login
func (h *Handlers) RequestLogin(w http.ResponseWriter, r *http.Request) {
	address, err := submittedEmail(w, r)
	if err != nil {
		respond.BadRequest(w, "email is required")
		return
	}

	if err := h.login.RequestLogin(r.Context(), address); err != nil {
		writeError(w, err)
		return
	}

	respond.Text(w, http.StatusAccepted, "login request received")
}

// VerifyLogin handles GET /login-verify?token=
func (h *Handlers) VerifyLogin(w http.ResponseWriter, r *http.Request) {
	loginToken := r.URL.Query().Get("token")
	if loginToken == "" {
		respond.Unauthorized(w, "login token is required")
		return
	}

	sessionToken, _, err := h.login.VerifyLogin(r.Context(), loginToken)
	if err != nil {
		writeError(w, err)
		return
	}

	cookie.SetSession(w, sessionToken, h.sessionTTL)
	http.Redirect(w, r, "/home", http.StatusTemporaryRedirect)
}

// Logout clears the session cookie. The token itself stays valid until
// it expires.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	cookie.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// Home lists the user's provider authorizations
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	email, _ := UserFromContext(r.Context())

	user, err := h.users.FindUser(r.Context(), email)
	if err != nil && !errors.Is(err, storage.ErrUserNotFound) {
		respond.InternalError(w, err)
		return
	}

	var statuses []ProviderStatus
	for _, p := range h.providers.All() {
		status := ProviderStatus{Name: p.Name, DisplayName: p.DisplayName}
		if user != nil {
			if rec, ok := user.Authorization(p.Name); ok {
				status.Connected = true
				if !rec.UpdatedAt.IsZero() {
					status.UpdatedAt = rec.UpdatedAt.UTC().Format(time.RFC3339)
				}
			}
		}
		statuses = append(statuses, status)
	}

	render(w, "home", PageData{
		Title:     "Home",
		Email:     email,
		Flash:     popFlash(w, r),
		Providers: statuses,
	})
}

// Settings renders the account settings page
func (h *Handlers) Settings(w http.ResponseWriter, r *http.Request) {
	email, _ := UserFromContext(r.Context())
	render(w, "settings", PageData{Title: "Settings", Email: email, Flash: popFlash(w, r)})
}

// DeleteAccount removes the user and their authorizations, then logs out
func (h *Handlers) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	email, _ := UserFromContext(r.Context())

	err := h.users.DeleteUser(r.Context(), email)
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		log.LogInfoWithFields("http", "Account already gone", map[string]any{
			"domain": emailutil.ExtractDomain(email),
		})
	case err != nil:
		respond.InternalError(w, err)
		return
	default:
		log.LogInfoWithFields("http", "Account deleted", map[string]any{
			"domain": emailutil.ExtractDomain(email),
		})
	}

	cookie.SetFlash(w, cookie.Flash{Type: cookie.FlashSuccess, Message: "account deleted"})
	cookie.ClearSession(w)
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

// Authorize sends the browser to the provider's consent screen
func (h *Handlers) Authorize(w http.ResponseWriter, r *http.Request) {
	email, _ := UserFromContext(r.Context())

	authURL, err := h.authorizer.AuthorizeURL(r.PathValue("provider"), email)
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// AuthorizeVerify is the provider redirect target. It exchanges the code
// and stores the resulting authorization. A GET callback must carry the
// signed state from AuthorizeURL; a POST may omit it.
func (h *Handlers) AuthorizeVerify(w http.ResponseWriter, r *http.Request) {
	email, _ := UserFromContext(r.Context())
	providerName := r.PathValue("provider")

	if _, ok := h.providers.Get(providerName); !ok {
		respond.NotFound(w, "unknown provider")
		return
	}

	code := r.FormValue("code")
	if code == "" {
		if providerErr := r.FormValue("error"); providerErr != "" {
			log.LogWarnWithFields("oauth", "Provider returned an error", map[string]any{
				"provider": providerName,
				"error":    providerErr,
			})
			respond.BadRequest(w, "authorization denied: "+providerErr)
			return
		}
		respond.BadRequest(w, "code is required")
		return
	}

	state := r.FormValue("state")
	if state == "" && r.Method == http.MethodGet {
		respond.BadRequest(w, "state is required")
		return
	}
	if state != "" {
		if err := h.authorizer.VerifyState(state, providerName, email); err != nil {
			log.LogWarnWithFields("oauth", "Callback state rejected", map[string]any{
				"provider": providerName,
				"error":    err.Error(),
			})
			writeError(w, err)
			return
		}
	}

	if _, err := h.authorizer.Exchange(r.Context(), providerName, code, email); err != nil {
		writeError(w, err)
		return
	}

	http.Redirect(w, r, "/home", http.StatusTemporaryRedirect)
}

// TestAuthorizations refreshes every provider authorization and reports the
// outcome through the flash cookie
func (h *Handlers) TestAuthorizations(w http.ResponseWriter, r *http.Request) {
	email, _ := UserFromContext(r.Context())
	at := h.now().UTC().Format(time.RFC3339)

	flash := cookie.Flash{Type: cookie.FlashSuccess, Message: fmt.Sprintf("authorizations refreshed at %s", at)}
	if err := h.refresher.RefreshAll(r.Context(), email); err != nil {
		log.LogErrorWithFields("refresh", "Authorization test failed", map[string]any{
			"domain": emailutil.ExtractDomain(email),
			"error":  err.Error(),
		})
		flash = cookie.Flash{Type: cookie.FlashError, Message: fmt.Sprintf("authorization test failed at %s", at)}
	}

	cookie.SetFlash(w, flash)
	http.Redirect(w, r, "/home", http.StatusFound)
}
