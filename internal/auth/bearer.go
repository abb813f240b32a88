// internal/auth/bearer.go
//
// Package auth checks the shared-secret bearer tokens guarding the
// scheduler trigger and the admin routes.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Authorized reports whether r carries expected. An empty expected secret
// authorizes nothing.
func Authorized(r *http.Request, expected string) bool {
	if expected == "" {
		return false
	}
	token := BearerToken(r)
	return subtle.ConstantTimeCompare([]byte(token), []byte(expected)) == 1
}

// Require rejects requests that do not carry token.
func Require(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !Authorized(r, token) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "Unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
