package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"gridguard/auth"
	"gridguard/ml"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, auth.ErrMissingCredential):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrAuthDenied):
		return http.StatusForbidden
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ml.ErrInvalidInput), errors.Is(err, ml.ErrSchemaMismatch):
		return http.StatusBadRequest
	default:
		// ErrModelUnavailable, ErrInferenceFailure and anything unexpected.
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, statusFor(err))
	render.JSON(w, r, errorResponse{Error: err.Error()})
}
