package server

import (
	"errors"
	"net/http"

	"github.com/tphummel/fit-drive/internal/auth"
	"github.com/tphummel/fit-drive/internal/login"
	"github.com/tphummel/fit-drive/internal/respond"
)

// writeError maps domain errors to HTTP responses
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, login.ErrEmailRequired):
		respond.BadRequest(w, "email is required")
	case errors.Is(err, login.ErrEmailMalformed):
		respond.UnprocessableEntity(w, "email is malformed")
	case login.IsTokenRejection(err):
		respond.Unauthorized(w, "invalid login token")
	case errors.Is(err, auth.ErrUnknownProvider):
		respond.NotFound(w, "unknown provider")
	case errors.Is(err, auth.ErrInvalidState):
		respond.BadRequest(w, "invalid state")
	default:
		respond.InternalError(w, err)
	}
}
