package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tphummel/fit-drive/internal/auth"
	"github.com/tphummel/fit-drive/internal/cookie"
	"github.com/tphummel/fit-drive/internal/email"
	"github.com/tphummel/fit-drive/internal/envutil"
	"github.com/tphummel/fit-drive/internal/login"
	"github.com/tphummel/fit-drive/internal/storage"
	"github.com/tphummel/fit-drive/internal/testutil"
	"github.com/tphummel/fit-drive/internal/token"
)

const testBaseURL = "http://localhost:8000"

var (
	loginSecret   = []byte("login-secret-that-is-at-least-32-bytes")
	sessionSecret = []byte("session-secret-that-is-at-least-32-bytes")
)

type countingIssuer struct {
	*token.Issuer
	loginIssued atomic.Int32
}

func (c *countingIssuer) IssueLoginToken(address string) (string, error) {
	c.loginIssued.Add(1)
	return c.Issuer.IssueLoginToken(address)
}

type harness struct {
	handler  http.Handler
	handlers *Handlers
	issuer   *countingIssuer
	users    storage.UserStore
}

// newHarness wires the real login, token and OAuth components around the
// given store and sender. tokenURL, when set, replaces both providers'
// token endpoints.
func newHarness(t *testing.T, users storage.UserStore, sender email.Sender, tokenURL string) *harness {
	t.Helper()
	t.Setenv(envutil.EnvVar, "production")

	if users == nil {
		users = storage.NewMemoryStorage()
	}
	if sender == nil {
		sender = email.NewMemorySender()
	}

	issuer, err := token.NewIssuer(loginSecret, sessionSecret)
	require.NoError(t, err)
	counting := &countingIssuer{Issuer: issuer}

	fitbit := auth.Fitbit("fitbit-client", "fitbit-secret")
	drive := auth.Drive("drive-client", "drive-secret")
	if tokenURL != "" {
		fitbit.TokenURL = tokenURL + "/fitbit"
		drive.TokenURL = tokenURL + "/drive"
	}
	registry, err := auth.NewRegistry(fitbit, drive)
	require.NoError(t, err)

	client := auth.NewClient(registry, users, testBaseURL, []byte("state-signing-key"), 2*time.Second)
	loginService := login.NewService(users, storage.NewMemoryStorage(), counting, sender, testBaseURL, token.DefaultLoginTTL)

	h := NewHandlers(loginService, users, registry, client, auth.NewRefresher(client), token.DefaultLoginTTL, token.DefaultSessionTTL)
	return &harness{
		handler:  NewMux(h, issuer),
		handlers: h,
		issuer:   counting,
		users:    users,
	}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) sessionCookie(t *testing.T, address string) *http.Cookie {
	t.Helper()
	value, err := h.issuer.IssueSessionToken(address)
	require.NoError(t, err)
	return &http.Cookie{Name: cookie.SessionCookie, Value: value}
}

func loginRequest(address string) *http.Request {
	form := url.Values{"email": {address}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestRequestLogin_ValidEmails(t *testing.T) {
	for _, address := range []string{"user@example.com", "first.last+tag@sub.example.co.uk", "x@y.io"} {
		t.Run(address, func(t *testing.T) {
			users := &testutil.MockUserStore{}
			users.On("FindUser", mock.Anything, address).Return(nil, storage.ErrUserNotFound).Once()
			users.On("CreateUser", mock.Anything, address).Return(&storage.User{Email: address}, nil).Once()

			sender := &testutil.MockSender{}
			sender.On("Send", mock.Anything, mock.MatchedBy(func(msg email.Message) bool {
				return msg.To == address && strings.Contains(msg.Body, "Click here to log in: "+testBaseURL+"/login-verify?token=")
			})).Return(nil).Once()

			h := newHarness(t, users, sender, "")
			rec := h.do(loginRequest(address))

			assert.Equal(t, http.StatusAccepted, rec.Code)
			assert.Equal(t, "login request received", rec.Body.String())
			assert.Equal(t, int32(1), h.issuer.loginIssued.Load())
			sender.AssertNumberOfCalls(t, "Send", 1)
			users.AssertExpectations(t)
		})
	}
}

func TestRequestLogin_ExistingUserIsNotRecreated(t *testing.T) {
	users := &testutil.MockUserStore{}
	users.On("FindUser", mock.Anything, "user@example.com").Return(&storage.User{Email: "user@example.com"}, nil).Once()

	sender := &testutil.MockSender{}
	sender.On("Send", mock.Anything, mock.Anything).Return(nil).Once()

	h := newHarness(t, users, sender, "")
	rec := h.do(loginRequest("user@example.com"))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	sender.AssertNumberOfCalls(t, "Send", 1)
}

func TestRequestLogin_JSONBody(t *testing.T) {
	sender := email.NewMemorySender()
	h := newHarness(t, nil, sender, "")

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"email":"user@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := h.do(req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, sender.Messages(), 1)
	assert.Equal(t, "user@example.com", sender.Messages()[0].To)
}

func TestRequestLogin_InvalidInput(t *testing.T) {
	tests := []struct {
		name       string
		email      string
		wantStatus int
		wantBody   string
	}{
		{"missing", "", http.StatusBadRequest, "email is required"},
		{"blank", "   ", http.StatusUnprocessableEntity, "email is malformed"},
		{"no_at", "user.example.com", http.StatusUnprocessableEntity, "email is malformed"},
		{"no_tld", "user@example", http.StatusUnprocessableEntity, "email is malformed"},
		{"no_local", "@example.com", http.StatusUnprocessableEntity, "email is malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &testutil.MockUserStore{}
			sender := &testutil.MockSender{}
			h := newHarness(t, users, sender, "")

			rec := h.do(loginRequest(tt.email))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
			assert.Zero(t, h.issuer.loginIssued.Load())
			users.AssertNotCalled(t, "FindUser", mock.Anything, mock.Anything)
			users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
			sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		})
	}
}

func TestRequestLogin_StoreFailureIsGeneric500(t *testing.T) {
	users := &testutil.MockUserStore{}
	users.On("FindUser", mock.Anything, "user@example.com").
		Return(nil, errors.Join(storage.ErrUnavailable, errors.New("dial tcp: connection refused"))).Once()
	sender := &testutil.MockSender{}

	h := newHarness(t, users, sender, "")
	rec := h.do(loginRequest("user@example.com"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", rec.Body.String())
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestVerifyLogin_SetsSessionCookie(t *testing.T) {
	h := newHarness(t, nil, nil, "")
	loginToken, err := h.issuer.IssueLoginToken("user@example.com")
	require.NoError(t, err)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/login-verify?token="+loginToken, nil))

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/home", rec.Header().Get("Location"))

	c := responseCookie(rec, cookie.SessionCookie)
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
	payload, err := h.issuer.VerifySession(c.Value)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", payload.Email)
}

func TestVerifyLogin_Rejections(t *testing.T) {
	h := newHarness(t, nil, nil, "")

	stale, err := token.NewIssuer(loginSecret, sessionSecret, token.WithClock(func() time.Time {
		return time.Now().Add(-11 * time.Minute)
	}))
	require.NoError(t, err)
	expired, err := stale.IssueLoginToken("user@example.com")
	require.NoError(t, err)

	other, err := token.NewIssuer([]byte("some-other-login-secret-32-bytes-long"), sessionSecret)
	require.NoError(t, err)
	wrongSecret, err := other.IssueLoginToken("user@example.com")
	require.NoError(t, err)

	sessionAsLogin, err := h.issuer.IssueSessionToken("user@example.com")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"missing", ""},
		{"expired", expired},
		{"wrong_secret", wrongSecret},
		{"structurally_invalid", "not-a-jwt"},
		{"session_token", sessionAsLogin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(httptest.NewRequest(http.MethodGet, "/login-verify?token="+url.QueryEscape(tt.token), nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Nil(t, responseCookie(rec, cookie.SessionCookie))
		})
	}
}

func TestVerifyLogin_TokenIsSingleUse(t *testing.T) {
	h := newHarness(t, nil, nil, "")
	loginToken, err := h.issuer.IssueLoginToken("user@example.com")
	require.NoError(t, err)

	first := h.do(httptest.NewRequest(http.MethodGet, "/login-verify?token="+loginToken, nil))
	assert.Equal(t, http.StatusTemporaryRedirect, first.Code)

	second := h.do(httptest.NewRequest(http.MethodGet, "/login-verify?token="+loginToken, nil))
	assert.Equal(t, http.StatusUnauthorized, second.Code)
}

func TestSessionGate(t *testing.T) {
	h := newHarness(t, nil, nil, "")

	loginToken, err := h.issuer.IssueLoginToken("user@example.com")
	require.NoError(t, err)

	protected := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/home"},
		{http.MethodGet, "/settings"},
		{http.MethodPost, "/settings/delete-account"},
		{http.MethodGet, "/authorize/fitbit"},
		{http.MethodPost, "/authorize-verify/fitbit?code=abc123"},
		{http.MethodPost, "/authorizations-test"},
	}
	cookies := map[string]*http.Cookie{
		"no_cookie":     nil,
		"garbage":       {Name: cookie.SessionCookie, Value: "garbage"},
		"login_token":   {Name: cookie.SessionCookie, Value: loginToken},
		"empty_cleared": {Name: cookie.SessionCookie, Value: ""},
	}

	for _, route := range protected {
		for name, c := range cookies {
			t.Run(route.method+route.path+"/"+name, func(t *testing.T) {
				req := httptest.NewRequest(route.method, route.path, nil)
				if c != nil {
					req.AddCookie(c)
				}
				rec := h.do(req)
				assert.Equal(t, http.StatusUnauthorized, rec.Code)
			})
		}
	}
}

func TestHome_RendersAndClearsFlash(t *testing.T) {
	h := newHarness(t, nil, nil, "")

	flashRec := httptest.NewRecorder()
	cookie.SetFlash(flashRec, cookie.Flash{Type: cookie.FlashSuccess, Message: "authorizations refreshed"})
	flash := responseCookie(flashRec, cookie.FlashCookie)
	require.NotNil(t, flash)

	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.AddCookie(h.sessionCookie(t, "user@example.com"))
	req.AddCookie(flash)
	rec := h.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "success: authorizations refreshed")
	assert.Contains(t, body, "user@example.com")
	assert.Contains(t, body, "Fitbit")
	assert.Contains(t, body, "Google Drive")

	cleared := responseCookie(rec, cookie.FlashCookie)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
}

func TestHome_ShowsConnectedProviders(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()
	_, err := store.CreateUser(ctx, "user@example.com")
	require.NoError(t, err)
	require.NoError(t, store.SaveAuthorization(ctx, storage.AuthorizationRecord{
		Provider:    "fitbit",
		OwnerEmail:  "user@example.com",
		AccessToken: "a",
	}))

	h := newHarness(t, store, nil, "")
	req := httptest.NewRequest(http.MethodGet, "/home", nil)
	req.AddCookie(h.sessionCookie(t, "user@example.com"))
	rec := h.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<span class="connected">connected</span>`)
	assert.Contains(t, rec.Body.String(), `<span class="disconnected">not connected</span>`)
}

func TestLogout(t *testing.T) {
	h := newHarness(t, nil, nil, "")

	for _, withSession := range []bool{true, false} {
		req := httptest.NewRequest(http.MethodGet, "/logout", nil)
		if withSession {
			req.AddCookie(h.sessionCookie(t, "user@example.com"))
		}
		rec := h.do(req)

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
		c := responseCookie(rec, cookie.SessionCookie)
		require.NotNil(t, c)
		assert.Empty(t, c.Value)
		assert.Equal(t, -1, c.MaxAge)
	}
}

func TestDeleteAccount(t *testing.T) {
	store := storage.NewMemoryStorage()
	ctx := context.Background()
	_, err := store.CreateUser(ctx, "user@example.com")
	require.NoError(t, err)

	h := newHarness(t, store, nil, "")
	req := httptest.NewRequest(http.MethodPost, "/settings/delete-account", nil)
	req.AddCookie(h.sessionCookie(t, "user@example.com"))
	rec := h.do(req)

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	session := responseCookie(rec, cookie.SessionCookie)
	require.NotNil(t, session)
	assert.Empty(t, session.Value)

	flash := responseCookie(rec, cookie.FlashCookie)
	require.NotNil(t, flash)
	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(flash)
	f, ok := cookie.PopFlash(httptest.NewRecorder(), next)
	require.True(t, ok)
	assert.Equal(t, "success: account deleted", f.String())

	_, err = store.FindUser(ctx, "user@example.com")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestDeleteAccount_StoreFailure(t *testing.T) {
	users := &testutil.MockUserStore{}
	users.On("DeleteUser", mock.Anything, "user@example.com").Return(storage.ErrUnavailable).Once()

	h := newHarness(t, users, nil, "")
	req := httptest.NewRequest(http.MethodPost, "/settings/delete-account", nil)
	req.AddCookie(h.sessionCookie(t, "user@example.com"))
	rec := h.do(req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Nil(t, responseCookie(rec, cookie.FlashCookie))
}

func TestAuthorize(t *testing.T) {
	h := newHarness(t, nil, nil, "")

	req := httptest.NewRequest(http.MethodGet, "/authorize/fitbit", nil)
	req.AddCookie(h.sessionCookie(t, "user@example.com"))
	rec := h.do(req)

	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "www.fitbit.com", location.Host)
	q := location.Query()
	assert.Equal(t, "fitbit-client", q.Get("client_id"))
	assert.Equal(t, testBaseURL+"/authorize-verify/fitbit", q.Get("redirect_uri"))
	assert.NotEmpty(t, q.Get("state"))

	req = httptest.NewRequest(http.MethodGet, "/authorize/strava", nil)
	req.AddCookie(h.sessionCookie(t, "user@example.com"))
	assert.Equal(t, http.StatusNotFound, h.do(req).Code)
}

func TestAuthorizeVerify_EndToEnd(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fitbit", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "abc123", r.PostForm.Get("code"))
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "fitbit-client", r.PostForm.Get("client_id"))
		assert.Equal(t, testBaseURL+"/authorize-verify/fitbit", r.PostForm.Get("redirect_uri"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "fitbit-client", user)
		assert.Equal(t, "fitbit-secret", pass)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","scope":"weight","token_type":"Bearer","user_id":"4ABCDE"}`))
	}))
	t.Cleanup(provider.Close)

	users := &testutil.MockUserStore{}
	users.On("SaveAuthorization", mock.Anything, mock.MatchedBy(func(rec storage.AuthorizationRecord) bool {
		return rec.Provider == "fitbit" &&
			rec.OwnerEmail == "user@example.com" &&
			rec.AccessToken == "at" &&
			rec.RefreshToken == "rt" &&
			rec.Scope == "weight" &&
			rec.TokenType == "Bearer" &&
			rec.ExternalUserID == "4ABCDE"
	})).Return(nil).Once()

	h := newHarness(t, users, nil, provider.URL)
	req := httptest.NewRequest(http.MethodPost, "/authorize-verify/fitbit?code=abc123", nil)
	req.AddCookie(h.sessionCookie(t, "user@example.com"))
	rec := h.do(req)

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/home", rec.Header().Get("Location"))
	users.AssertNumberOfCalls(t, "SaveAuthorization", 1)
	users.AssertExpectations(t)
}

func TestAuthorizeVerify_Failures(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"errorType":"invalid_grant"}]}`))
	}))
	t.Cleanup(provider.Close)

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
		wantBody   string
	}{
		{"missing_code", http.MethodGet, "/authorize-verify/fitbit", http.StatusBadRequest, "code is required"},
		{"provider_denied", http.MethodGet, "/authorize-verify/fitbit?error=access_denied", http.StatusBadRequest, "authorization denied: access_denied"},
		{"unknown_provider", http.MethodGet, "/authorize-verify/strava?code=abc", http.StatusNotFound, "unknown provider"},
		{"get_without_state", http.MethodGet, "/authorize-verify/fitbit?code=abc", http.StatusBadRequest, "state is required"},
		{"bad_state", http.MethodGet, "/authorize-verify/fitbit?code=abc&state=forged", http.StatusBadRequest, "invalid state"},
		{"post_bad_state", http.MethodPost, "/authorize-verify/fitbit?code=abc&state=forged", http.StatusBadRequest, "invalid state"},
		{"provider_rejects", http.MethodPost, "/authorize-verify/fitbit?code=abc", http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &testutil.MockUserStore{}
			h := newHarness(t, users, nil, provider.URL)

			req := httptest.NewRequest(tt.method, tt.target, nil)
			req.AddCookie(h.sessionCookie(t, "user@example.com"))
			rec := h.do(req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
			users.AssertNotCalled(t, "SaveAuthorization", mock.Anything, mock.Anything)
		})
	}
}

func TestAuthorizeVerify_AcceptsStateFromAuthorizeURL(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer"}`))
	}))
	t.Cleanup(provider.Close)

	store := storage.NewMemoryStorage()
	_, err := store.CreateUser(context.Background(), "user@example.com")
	require.NoError(t, err)
	h := newHarness(t, store, nil, provider.URL)

	req := httptest.NewRequest(http.MethodGet, "/authorize/drive", nil)
	req.AddCookie(h.sessionCookie(t, "user@example.com"))
	location, err := url.Parse(h.do(req).Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")

	req = httptest.NewRequest(http.MethodGet, "/authorize-verify/drive?code=abc&state="+url.QueryEscape(state), nil)
	req.AddCookie(h.sessionCookie(t, "user@example.com"))
	assert.Equal(t, http.StatusTemporaryRedirect, h.do(req).Code)

	// state for drive does not verify on the fitbit callback
	req = httptest.NewRequest(http.MethodGet, "/authorize-verify/fitbit?code=abc&state="+url.QueryEscape(state), nil)
	req.AddCookie(h.sessionCookie(t, "user@example.com"))
	assert.Equal(t, http.StatusBadRequest, h.do(req).Code)
}

func TestAuthorizationsTest(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer"}`))
	}))
	t.Cleanup(provider.Close)

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name      string
		providers []string
		wantFlash string
	}{
		{"all_connected", []string{"fitbit", "drive"}, "success: authorizations refreshed at 2026-01-02T03:04:05Z"},
		{"drive_missing", []string{"fitbit"}, "error: authorization test failed at 2026-01-02T03:04:05Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStorage()
			ctx := context.Background()
			_, err := store.CreateUser(ctx, "user@example.com")
			require.NoError(t, err)
			for _, p := range tt.providers {
				require.NoError(t, store.SaveAuthorization(ctx, storage.AuthorizationRecord{
					Provider:     p,
					OwnerEmail:   "user@example.com",
					AccessToken:  "stale",
					RefreshToken: "rt",
				}))
			}

			h := newHarness(t, store, nil, provider.URL)
			h.handlers.now = func() time.Time { return fixed }

			req := httptest.NewRequest(http.MethodPost, "/authorizations-test", nil)
			req.AddCookie(h.sessionCookie(t, "user@example.com"))
			rec := h.do(req)

			assert.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, "/home", rec.Header().Get("Location"))

			flash := responseCookie(rec, cookie.FlashCookie)
			require.NotNil(t, flash)
			next := httptest.NewRequest(http.MethodGet, "/home", nil)
			next.AddCookie(flash)
			f, ok := cookie.PopFlash(httptest.NewRecorder(), next)
			require.True(t, ok)
			assert.Equal(t, tt.wantFlash, f.String())
		})
	}
}

func TestPublicPages(t *testing.T) {
	h := newHarness(t, nil, nil, "")

	for _, path := range []string{"/", "/login"} {
		rec := h.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	}

	rec := h.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
