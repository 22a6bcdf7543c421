package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/foodrelief/relief-backend/api/responses"
	pkgerrors "github.com/foodrelief/relief-backend/pkg/errors"
	"github.com/foodrelief/relief-backend/pkg/logger"
	pkgredis "github.com/foodrelief/relief-backend/pkg/redis"
)

const rateLimitWindow = time.Minute

// RateLimit caps each caller at perMinute requests per one-minute window.
// Authenticated callers are keyed by user id, anonymous ones by client IP.
func RateLimit(limiter pkgredis.RateLimiter, perMinute int, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil || perMinute <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			scope := "ip:" + clientIP(r)
			if userID := UserIDFromContext(ctx); userID != "" {
				scope = "user:" + userID
			}

			quota, err := limiter.Allow(ctx, scope, int64(perMinute), rateLimitWindow)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(quota.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(quota.Remaining(), 10))
			if quota.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			if logg != nil {
				logg.Warn(logg.WithFields(ctx, map[string]any{
					"scope":    scope,
					"attempts": quota.Used,
					"limit":    perMinute,
				}), "rate_limit.blocked")
			}
			w.Header().Set("Retry-After", retryAfterSeconds(quota.ResetIn))
			responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
		})
	}
}

func retryAfterSeconds(d time.Duration) string {
	if d <= 0 {
		d = rateLimitWindow
	}
	return strconv.Itoa(int(math.Ceil(d.Seconds())))
}

// clientIP trusts the first X-Forwarded-For hop set by the load balancer.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
