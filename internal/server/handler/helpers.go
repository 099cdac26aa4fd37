// Package handler serves the HTTP API: JSON encoding, error-to-status
// mapping, and one handler type per resource.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
	"github.com/carbidx2025/CarbidX-EM/internal/server/middleware"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a service error to its stable HTTP status. Sentinels
// keep their message; everything unrecognized becomes a generic 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, domain.ErrForbidden.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, domain.ErrNotFound.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, domain.ErrConflict.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, domain.ErrRateLimited.Error())
	case errors.Is(err, domain.ErrAuctionNotActive):
		writeError(w, http.StatusBadRequest, domain.ErrAuctionNotActive.Error())
	case errors.Is(err, domain.ErrBidNotCompetitive):
		writeError(w, http.StatusBadRequest, domain.ErrBidNotCompetitive.Error())
	case errors.Is(err, domain.ErrBudgetExceeded):
		writeError(w, http.StatusBadRequest, domain.ErrBudgetExceeded.Error())
	case errors.Is(err, domain.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, domain.ErrInvalidStatus.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrLockHeld):
		writeError(w, http.StatusConflict, "auction is busy, retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON reads the request body into v. Unknown fields are ignored so
// clients can send extra metadata without breaking.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// principal retrieves the verified caller identity from the request context.
// The auth middleware guarantees it is present on protected routes; a miss
// means the route was wired outside the middleware chain.
func principal(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized.Error())
		return domain.Principal{}, false
	}
	return p, true
}
