package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/techloans-backend/api/responses"
	pkgerrors "github.com/angelmondragon/techloans-backend/pkg/errors"
	"github.com/angelmondragon/techloans-backend/pkg/logger"
)

type windowLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RateLimit caps authenticated callers to limit requests per window. Callers
// are keyed by user id, falling back to client IP. A limiter error fails open.
func RateLimit(limiter windowLimiter, limit int, window time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || limit <= 0 || window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			scope := "api:user:" + UserIDFromContext(ctx)
			if UserIDFromContext(ctx) == "" {
				scope = "api:ip:" + clientIP(r)
			}

			allowed, count, err := limiter.FixedWindowAllow(ctx, scope, int64(limit), window)
			if err != nil {
				logError(ctx, logg, "rate limit check failed", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if logg != nil {
					logg.Warn(logg.WithFields(ctx, map[string]any{
						"scope":    scope,
						"attempts": count,
						"limit":    limit,
					}), "api.rate_limit.blocked")
				}
				responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
