package respond

import (
	"encoding/json"
	"net/http"

	"github.com/tphummel/fit-drive/internal/envutil"
	"github.com/tphummel/fit-drive/internal/log"
)

// InternalErrorMessage is the only 5xx body clients see outside development
const InternalErrorMessage = "internal server error"

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.LogError("Failed to encode JSON response: %v", err)
		return err
	}
	return nil
}

// Text writes a plain-text response
func Text(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(message))
}

func BadRequest(w http.ResponseWriter, message string) {
	Text(w, http.StatusBadRequest, message)
}

func Unauthorized(w http.ResponseWriter, message string) {
	Text(w, http.StatusUnauthorized, message)
}

func NotFound(w http.ResponseWriter, message string) {
	Text(w, http.StatusNotFound, message)
}

func UnprocessableEntity(w http.ResponseWriter, message string) {
	Text(w, http.StatusUnprocessableEntity, message)
}

// InternalError logs err and writes a 500. The error text reaches the
// client only in development mode.
func InternalError(w http.ResponseWriter, err error) {
	log.LogErrorWithFields("http", "Internal server error", map[string]any{
		"error": err.Error(),
	})
	message := InternalErrorMessage
	if envutil.IsDev() {
		message = err.Error()
	}
	Text(w, http.StatusInternalServerError, message)
}
