package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tphummel/fit-drive/internal/cookie"
	"github.com/tphummel/fit-drive/internal/emailutil"
	"github.com/tphummel/fit-drive/internal/log"
	"github.com/tphummel/fit-drive/internal/respond"
	"github.com/tphummel/fit-drive/internal/token"
)

// MiddlewareFunc is a function that wraps an http.Handler
type MiddlewareFunc func(http.Handler) http.Handler

// ChainMiddleware chains multiple middleware functions
func ChainMiddleware(h http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	for _, mw := range middlewares {
		h = mw(h)
	}
	return h
}

// responseWriterDelegator wraps http.ResponseWriter to capture status and bytes written
// while properly delegating all optional interfaces through Unwrap
type responseWriterDelegator struct {
	http.ResponseWriter
	status      int
	written     int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriterDelegator {
	return &responseWriterDelegator{
		ResponseWriter: w,
		status:         http.StatusOK,
	}
}

func (r *responseWriterDelegator) Status() int {
	return r.status
}

func (r *responseWriterDelegator) BytesWritten() int {
	return r.written
}

func (r *responseWriterDelegator) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseWriterDelegator) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.written += n
	return n, err
}

// Unwrap returns the underlying ResponseWriter for interface detection
// This allows Go 1.20+ to automatically detect interfaces like http.Flusher
// when used with http.ResponseController
func (r *responseWriterDelegator) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Flush implements http.Flusher
func (r *responseWriterDelegator) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Verify interfaces
var _ http.ResponseWriter = (*responseWriterDelegator)(nil)
var _ http.Flusher = (*responseWriterDelegator)(nil)

// NewLoggerMiddleware logs method, path, status and duration. Query strings
// are left out because they carry login tokens and authorization codes.
func NewLoggerMiddleware(prefix string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			// Log request with response details
			fields := map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      wrapped.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
				"bytes":       wrapped.BytesWritten(),
				"remote_addr": r.RemoteAddr,
			}

			log.LogInfoWithFields(prefix, "request", fields)
		})
	}
}

// NewRecoverMiddleware recovers from panics
func NewRecoverMiddleware(prefix string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.LogErrorWithFields(prefix, "Recovered from panic", map[string]any{
						"panic":  fmt.Sprint(err),
						"method": r.Method,
						"path":   r.URL.Path,
					})
					respond.Text(w, http.StatusInternalServerError, respond.InternalErrorMessage)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SessionVerifier checks a session token. *token.Issuer satisfies it.
type SessionVerifier interface {
	VerifySession(tokenString string) (token.Payload, error)
}

type contextKey string

const userKey contextKey = "session.user"

// WithUser adds the authenticated email to the context
func WithUser(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, userKey, email)
}

// UserFromContext returns the authenticated email, if any
func UserFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(userKey).(string)
	return email, ok && email != ""
}

// NewSessionMiddleware rejects requests without a valid session cookie
// before the wrapped handler runs, and puts the session email in the
// request context otherwise.
func NewSessionMiddleware(sessions SessionVerifier) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			value, err := cookie.GetSession(r)
			if err != nil || value == "" {
				log.LogTraceWithFields("session", "No session cookie", map[string]any{
					"path": r.URL.Path,
				})
				respond.Unauthorized(w, "authentication required")
				return
			}

			payload, err := sessions.VerifySession(value)
			if err != nil {
				log.LogDebugWithFields("session", "Session rejected", map[string]any{
					"path":  r.URL.Path,
					"error": err.Error(),
				})
				respond.Unauthorized(w, "invalid session")
				return
			}

			log.LogTraceWithFields("session", "Session accepted", map[string]any{
				"domain": emailutil.ExtractDomain(payload.Email),
			})
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), payload.Email)))
		})
	}
}
