package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authMiddleware validates a Bearer token using constant-time comparison.
// Requests without a token receive 401; a wrong token receives 403.
func authMiddleware(token string) func(http.Handler) http.Handler {
	tokenBytes := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const prefix = "Bearer "
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, prefix) {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			provided := []byte(strings.TrimPrefix(authHeader, prefix))
			if subtle.ConstantTimeCompare(provided, tokenBytes) != 1 {
				writeError(w, http.StatusForbidden, "invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
