package server

import "net/http"

// NewMux builds the complete HTTP handler. Routes behind the session gate
// never run without a verified session.
func NewMux(h *Handlers, sessions SessionVerifier) http.Handler {
	mux := http.NewServeMux()
	gate := NewSessionMiddleware(sessions)
	protect := func(f http.HandlerFunc) http.Handler { return gate(f) }

	mux.Handle("GET /health", NewHealthHandler())

	mux.HandleFunc("GET /{$}", h.Landing)
	mux.HandleFunc("POST /{$}", h.Landing)
	mux.HandleFunc("GET /login", h.LoginPage)
	mux.HandleFunc("POST /login", h.RequestLogin)
	mux.HandleFunc("GET /login-verify", h.VerifyLogin)
	mux.HandleFunc("GET /logout", h.Logout)
	mux.HandleFunc("POST /logout", h.Logout)

	mux.Handle("GET /home", protect(h.Home))
	mux.Handle("POST /home", protect(h.Home))
	mux.Handle("GET /settings", protect(h.Settings))
	mux.Handle("POST /settings/delete-account", protect(h.DeleteAccount))
	mux.Handle("GET /authorize/{provider}", protect(h.Authorize))
	mux.Handle("GET /authorize-verify/{provider}", protect(h.AuthorizeVerify))
	mux.Handle("POST /authorize-verify/{provider}", protect(h.AuthorizeVerify))
	mux.Handle("POST /authorizations-test", protect(h.TestAuthorizations))

	return ChainMiddleware(mux,
		NewRecoverMiddleware("http"),
		NewLoggerMiddleware("http"),
	)
}
