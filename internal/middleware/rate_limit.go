package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fleetfox/fleetfox/internal/metrics"
	"github.com/fleetfox/fleetfox/internal/ratelimit"
	"github.com/fleetfox/fleetfox/pkg/config"
)

// RateLimitIngest throttles verdict pushes per source address. The workflow
// engine retries on 429, so a tight bucket here is safe.
func RateLimitIngest(lim ratelimit.Limiter, cfg *config.Config) gin.HandlerFunc {
	return rateLimitByIP(lim, "ingest", cfg.RateLimit.Ingest)
}

func rateLimitByIP(lim ratelimit.Limiter, scope string, bcfg config.RateLimitBucketConfig) gin.HandlerFunc {
	bucket := ratelimit.Bucket{RequestsPerMinute: bcfg.RequestsPerMinute, BurstSize: bcfg.BurstSize}
	return func(c *gin.Context) {
		if lim == nil || !bucket.Enabled() {
			c.Next()
			return
		}

		dec, err := lim.Allow(c.Request.Context(), scope, c.ClientIP(), bucket)
		if err != nil {
			// Fail open to avoid turning Redis hiccups into outages.
			slog.Default().Warn("rate limit check failed", "scope", scope, "err", err)
			c.Next()
			return
		}
		if dec.Allowed {
			c.Next()
			return
		}

		retryAfterSeconds := int(dec.RetryAfter.Seconds())
		if retryAfterSeconds <= 0 {
			retryAfterSeconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		metrics.RateLimitHitsTotal.WithLabelValues(scope).Inc()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":             "rate limit exceeded",
			"scope":             scope,
			"retryAfterSeconds": retryAfterSeconds,
		})
	}
}
