package auth

import (
	"context"
	"errors"
)

// ErrForbidden is returned when an identity lacks the required role.
var ErrForbidden = errors.New("access denied, insufficient role")

// Identity is the verified caller of a request.
type Identity struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the identity attached by the auth middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}

// RequireRole returns ErrForbidden unless id carries role.
func RequireRole(id Identity, role string) error {
	if id.Role != role {
		return ErrForbidden
	}
	return nil
}
