// Package requestctx carries the authenticated caller through a request context.
package requestctx

import (
	"context"
	"strings"
)

// Identity is the authenticated user behind a request.
type Identity struct {
	ID    string
	Name  string
	Email string
}

// Authenticated reports whether the identity names a user.
func (i Identity) Authenticated() bool {
	return strings.TrimSpace(i.ID) != ""
}

// DisplayName returns the friendliest label available for the user.
func (i Identity) DisplayName() string {
	if name := strings.TrimSpace(i.Name); name != "" {
		return name
	}
	if email := strings.TrimSpace(i.Email); email != "" {
		return email
	}
	return strings.TrimSpace(i.ID)
}

type identityContextKey struct{}

// WithIdentity stores the caller identity in context.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext returns the caller identity stored in context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	identity, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok || !identity.Authenticated() {
		return Identity{}, false
	}
	return identity, true
}

// UserIDFromContext returns the caller's user id, or "" when signed out.
func UserIDFromContext(ctx context.Context) string {
	identity, _ := IdentityFromContext(ctx)
	return identity.ID
}
