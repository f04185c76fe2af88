package middleware

import (
	"net/http"
	"strings"

	"github.com/bazaarhub/bazaar-backend/api/responses"
	pkgAuth "github.com/bazaarhub/bazaar-backend/pkg/auth"
	"github.com/bazaarhub/bazaar-backend/pkg/config"
	pkgerrors "github.com/bazaarhub/bazaar-backend/pkg/errors"
	"github.com/bazaarhub/bazaar-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the caller.
// A broken JWT config fails every request with 500 rather than letting
// callers through.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	tokens, cfgErr := pkgAuth.NewTokens(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfgErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, cfgErr, "auth misconfigured"))
				return
			}
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			user, err := tokens.Verify(token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			if rec, ok := w.(*statusRecorder); ok {
				rec.userID = user.UserID.String()
			}
			ctx := WithUser(r.Context(), user)
			if logg != nil {
				actor := logger.Actor{UserID: user.UserID.String(), Role: string(user.Role)}
				if user.SellerID != nil {
					actor.SellerID = user.SellerID.String()
				}
				ctx = logg.WithActor(ctx, actor)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) string {
	raw := strings.TrimSpace(header)
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return raw
}
