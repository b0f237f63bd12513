package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/example/cardbox/internal/shared"
)

// writeJSON encodes v with the given status. Encoding failures are logged;
// the status line has already been written by then.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(r.Context(), "failed to encode response", "error", err)
	}
}

// writeError maps the shared sentinel errors onto HTTP statuses; anything
// unrecognized is a 500 with a generic body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, shared.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, shared.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, shared.ErrUnauthorized), errors.Is(err, shared.ErrInvalidToken):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	default:
		s.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// decodeJSON reads the request body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return shared.ErrValidation
	}
	return nil
}

// sinceParam parses the optional incremental-pull bound; absent or
// malformed values mean "everything".
func sinceParam(r *http.Request) int64 {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return 0
	}
	since, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || since < 0 {
		return 0
	}
	return since
}
