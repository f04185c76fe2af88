package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bazaarhub/bazaar-backend/api/responses"
	pkgerrors "github.com/bazaarhub/bazaar-backend/pkg/errors"
	"github.com/bazaarhub/bazaar-backend/pkg/logger"
	pkgredis "github.com/bazaarhub/bazaar-backend/pkg/redis"
)

// CheckoutRateLimit caps checkout attempts per user within a fixed window.
// Limiter errors fail open.
func CheckoutRateLimit(limiter pkgredis.RateLimiter, limit int64, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserIDFromContext(r.Context())
			if limiter == nil || limit <= 0 || window <= 0 || userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, count, err := limiter.FixedWindowAllow(r.Context(), "checkout:"+userID, limit, window)
			if err != nil {
				logError(r.Context(), logg, "checkout rate limit check failed", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many checkout attempts").
					WithDetails(map[string]any{"attempts": count, "limit": limit}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
