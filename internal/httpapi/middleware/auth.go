package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Auth checks the Authorization header against a configured constant
// (spec §6.1's "optional bearer-style header check"). An empty expected
// value disables the check entirely.
func Auth(expected string) Middleware {
	return func(next http.Handler) http.Handler {
		if expected == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token := strings.TrimPrefix(authHeader, "Bearer ")

			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
