package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/example/cardbox/internal/server/auth"
)

type contextKey string

// userIDKey is the request-context key the authenticated user id travels
// under.
const userIDKey contextKey = "userID"

// withAuth validates the bearer token and injects the user id into the
// request context. Requests without a valid token are rejected with 401.
func (s *Server) withAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		userID, err := auth.GetUserIDFromToken(token, []byte(s.config.SecretKey))
		if err != nil || userID == "" {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userID extracts the authenticated user id placed by withAuth.
func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}
