// Package middleware holds HTTP middleware for the membrs API.
package middleware

import (
	"context"
	"log"
	"net/http"
)

// Verifier checks superuser credentials.
type Verifier interface {
	VerifySuperUser(ctx context.Context, username, password string) (bool, error)
}

// SuperUserAuth guards a route with HTTP Basic auth against the stored
// superuser. A missing header or wrong credentials get 401, a header that is
// not valid Basic auth gets 422.
func SuperUserAuth(v Verifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				log.Printf("🔒 Superuser request without authorization header: %s %s", r.Method, r.URL.Path)
				unauthorized(w, "missing authorization header")
				return
			}

			username, password, ok := r.BasicAuth()
			if !ok {
				log.Printf("🔒 Malformed authorization header on %s %s", r.Method, r.URL.Path)
				http.Error(w, "wrongly formatted authorization header", http.StatusUnprocessableEntity)
				return
			}

			valid, err := v.VerifySuperUser(r.Context(), username, password)
			if err != nil {
				log.Printf("❌ Failed to verify superuser: %v", err)
				http.Error(w, "couldn't fetch superuser", http.StatusInternalServerError)
				return
			}
			if !valid {
				log.Printf("🔒 Username or password mismatch for %q", username)
				unauthorized(w, "Username or password mismatch")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Basic realm="membrs superuser"`)
	http.Error(w, msg, http.StatusUnauthorized)
}
