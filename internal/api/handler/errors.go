package handler

import (
	"errors"
	"net/http"

	"github.com/dosepoint/dosepoint/internal/api/response"
	"github.com/dosepoint/dosepoint/internal/apperr"
)

// writeError translates a classified service error into a problem response.
// Unclassified errors and KindInternal map to a generic 500 so internal
// details never leak to clients.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case apperr.IsNotFound(err):
		response.NotFound(w, r, errDetail(err))
	case apperr.IsInvalid(err):
		response.BadRequest(w, r, errDetail(err), nil)
	case apperr.IsConflict(err):
		response.Conflict(w, r, errDetail(err))
	case apperr.IsTransient(err):
		response.ServiceUnavailable(w, r, "temporarily unavailable, retry shortly")
	default:
		response.InternalError(w, r, "internal server error")
	}
}

// errDetail extracts the classified message, which is written for clients.
// The wrapped cause stays server-side.
func errDetail(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return "request failed"
}
