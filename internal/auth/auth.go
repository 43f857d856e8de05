package auth

import (
	"context"
	"net/http"
)

// Realm is announced in WWW-Authenticate challenges
const Realm = "Update Manager Registry"

// Challenge is the WWW-Authenticate header value for basic auth
const Challenge = `Basic realm="` + Realm + `"`

// User represents an authenticated user
type User struct {
	Username string
}

// Authenticator defines the authentication interface
type Authenticator interface {
	// Authenticate validates request credentials and returns user info
	Authenticate(r *http.Request) (*User, error)

	// Middleware returns HTTP middleware for the auth method
	Middleware() func(http.Handler) http.Handler
}

type userKey struct{}

// WithUser returns a copy of ctx carrying u
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the user stored by the auth middleware, if any
func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userKey{}).(*User)
	return u, ok && u != nil
}
