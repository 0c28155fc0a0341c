package cookie

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/tphummel/fit-drive/internal/envutil"
	"github.com/tphummel/fit-drive/internal/log"
)

// Cookie names used by fit-drive
const (
	SessionCookie = "sessionPayload"
	FlashCookie   = "flash"
)

// Flash types
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// Flash is a one-shot status message shown on the next page view
type Flash struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// String renders the flash as "type: message"
func (f Flash) String() string {
	return f.Type + ": " + f.Message
}

func set(w http.ResponseWriter, name, value string, maxAge time.Duration) {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   !envutil.IsDev(),
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		c.MaxAge = int(maxAge.Seconds())
		c.Expires = time.Now().Add(maxAge)
	}
	http.SetCookie(w, c)
}

// SetSession sets the session cookie carrying the signed session token
func SetSession(w http.ResponseWriter, value string, maxAge time.Duration) {
	set(w, SessionCookie, value, maxAge)

	log.LogTraceWithFields("cookie", "Session cookie set", map[string]any{
		"maxAge":   maxAge.String(),
		"secure":   !envutil.IsDev(),
		"sameSite": "Lax",
	})
}

// Clear removes a cookie by emptying it with an expiry in the past
func Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   !envutil.IsDev(),
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// ClearSession removes the session cookie
func ClearSession(w http.ResponseWriter) {
	Clear(w, SessionCookie)
	log.LogTraceWithFields("cookie", "Session cookie cleared", nil)
}

// Get retrieves a cookie value from the request
func Get(r *http.Request, name string) (string, error) {
	cookie, err := r.Cookie(name)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// GetSession retrieves the session cookie value
func GetSession(r *http.Request) (string, error) {
	return Get(r, SessionCookie)
}

// SetFlash stores a flash message for the next page view
func SetFlash(w http.ResponseWriter, f Flash) {
	data, err := json.Marshal(f)
	if err != nil {
		log.LogErrorWithFields("cookie", "Failed to encode flash", map[string]any{"error": err.Error()})
		return
	}
	set(w, FlashCookie, base64.RawURLEncoding.EncodeToString(data), 0)
}

// PopFlash reads the pending flash message, if any, and clears it. A
// flash that cannot be decoded is discarded.
func PopFlash(w http.ResponseWriter, r *http.Request) (Flash, bool) {
	value, err := Get(r, FlashCookie)
	if err != nil || value == "" {
		return Flash{}, false
	}
	Clear(w, FlashCookie)

	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		log.LogDebugWithFields("cookie", "Discarding undecodable flash", map[string]any{"error": err.Error()})
		return Flash{}, false
	}
	var f Flash
	if err := json.Unmarshal(data, &f); err != nil {
		log.LogDebugWithFields("cookie", "Discarding malformed flash", map[string]any{"error": err.Error()})
		return Flash{}, false
	}
	return f, true
}
