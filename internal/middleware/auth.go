package middleware

import (
	"context"
	"net/http"
	"strings"

	"foodline/internal/auth"
)

type contextKey string

const IdentityKey contextKey = "identity"

// TokenVerifier is the slice of the auth package this middleware needs.
// Keeps the packages loosely coupled.
type TokenVerifier interface {
	Verify(raw string) (auth.Identity, error)
}

type Auth struct {
	verifier TokenVerifier
}

func NewAuth(v TokenVerifier) *Auth {
	return &Auth{verifier: v}
}

// Handle extracts the bearer credential (Authorization header, query-param
// fallback for websocket handshakes), verifies it and injects the Identity
// into the request context. Anything that fails verification is refused
// here, before any handler runs.
func (a *Auth) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ""

		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 {
				tokenString = parts[1]
			}
		}

		// Browsers cannot set headers on websocket handshakes.
		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}

		if tokenString == "" {
			http.Error(w, "Missing authentication token", http.StatusUnauthorized)
			return
		}

		ident, err := a.verifier.Verify(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), IdentityKey, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFrom returns the authenticated identity stored by Handle.
func IdentityFrom(ctx context.Context) (auth.Identity, bool) {
	ident, ok := ctx.Value(IdentityKey).(auth.Identity)
	return ident, ok
}
