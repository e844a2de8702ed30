package server

import (
	"context"

	"github.com/taskforge-io/taskforge/auth"
)

type contextKey int

const ctxKeyUser contextKey = 0

func contextWithUser(ctx context.Context, u *auth.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, u)
}

// userFromContext returns the authenticated user set by the auth
// middleware, or nil.
func userFromContext(ctx context.Context) *auth.User {
	u, _ := ctx.Value(ctxKeyUser).(*auth.User)
	return u
}
