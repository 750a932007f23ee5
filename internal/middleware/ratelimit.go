package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"visit-tracker/internal/errs"
	"visit-tracker/internal/metrics"
	"visit-tracker/internal/ratelimit"

	"github.com/gin-gonic/gin"
)

// RateLimit bounds requests per client IP within scope. Limiter failures let the request through.
func RateLimit(limiter ratelimit.Limiter, scope string, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(c *gin.Context) {
		key := scope + ":" + c.ClientIP()
		res, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Warn("rate limiter unavailable; allowing request", "scope", scope, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(math.Ceil(res.ResetIn.Seconds()))))

		if !res.Allowed {
			metrics.RateLimited.WithLabelValues(scope).Inc()
			retry := int(math.Ceil(res.ResetIn.Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			abort(c, http.StatusTooManyRequests, errs.KindRateLimited, "Too many requests; try again later")
			return
		}
		c.Next()
	}
}
