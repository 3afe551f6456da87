package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/quickcart/apiserver/internal/auth"
)

const (
	msgNoToken      = "access denied, no token provided"
	msgInvalidToken = "invalid or expired token"
)

// TokenVerifier verifies bearer tokens. auth.TokenService satisfies it.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// RequireAuth rejects requests without a valid bearer token and attaches
// the verified identity to the request context.
func RequireAuth(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, msgNoToken)
				return
			}

			identity, err := tokens.Verify(tokenString)
			if err != nil {
				writeError(w, http.StatusForbidden, msgInvalidToken)
				return
			}

			ctx := auth.WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated requests whose identity lacks role.
// It must be mounted after RequireAuth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, msgNoToken)
				return
			}
			if err := auth.RequireRole(identity, role); err != nil {
				writeError(w, http.StatusForbidden, "access denied, "+role+" only")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the token from a "Bearer <token>" header. Any other
// scheme counts as no token, so it yields 401 rather than 403.
func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
