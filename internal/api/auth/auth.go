// Package auth provides bearer-token authentication for the caller-facing
// notification operations.
package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/76ahmad/garage-management-system/internal/api/respond"
)

type callerKey struct{}

// CallerFrom returns the authenticated caller name, or "" outside an
// authenticated request.
func CallerFrom(ctx context.Context) string {
	name, _ := ctx.Value(callerKey{}).(string)
	return name
}

// Middleware rejects requests whose Authorization header does not carry a
// known bearer token. The check runs before any handler work, so
// unauthenticated calls never reach recipient resolution or the store.
func Middleware(tokens map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || presented == "" {
				respond.WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Must be authenticated")
				return
			}

			for name, token := range tokens {
				if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1 {
					ctx := context.WithValue(r.Context(), callerKey{}, name)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}
			respond.WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Must be authenticated")
		})
	}
}
