package api

import (
	"net/http"
	"strings"
)

// AuthMiddleware validates a Bearer token against apiKey. Authentication
// extractors are an external collaborator (spec Non-goals); when apiKey is
// empty this middleware is a no-op passthrough, matching a deployment that
// delegates auth to a fronting proxy instead.
func AuthMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) || auth[len(prefix):] != apiKey {
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}
