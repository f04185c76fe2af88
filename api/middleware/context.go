package middleware

import (
	"context"

	"github.com/bazaarhub/bazaar-backend/pkg/auth"
)

type contextKey string

const ctxUser contextKey = "authenticated_user"

// WithUser injects the caller identity into the context.
func WithUser(ctx context.Context, user auth.AuthenticatedUser) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUser, user)
}

// UserFromContext returns the identity seeded by Auth.
func UserFromContext(ctx context.Context) (auth.AuthenticatedUser, bool) {
	if ctx == nil {
		return auth.AuthenticatedUser{}, false
	}
	user, ok := ctx.Value(ctxUser).(auth.AuthenticatedUser)
	return user, ok
}

func UserIDFromContext(ctx context.Context) string {
	if user, ok := UserFromContext(ctx); ok {
		return user.UserID.String()
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if user, ok := UserFromContext(ctx); ok {
		return string(user.Role)
	}
	return ""
}
