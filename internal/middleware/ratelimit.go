package middleware

import (
	"fmt"
	"net/http"

	"github.com/firescope/resource-governor/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// Enforces per-endpoint quotas via the shared limiter. Authenticated
// callers are keyed by user ID, anonymous ones by client IP. A store
// outage fails open: the request passes through without limit headers.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			userID = c.ClientIP()
		}

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}

		ctx := c.Request.Context()
		allowed, decision := limiter.CheckRateLimit(ctx, endpoint, userID)

		// A zero limit means the check failed open; no headers to report
		if decision.Limit > 0 {
			c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", decision.Limit))
			c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
			c.Header("X-RateLimit-Window", decision.Window)
		}

		if !allowed {
			c.Set("rate_limited", true)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":  "Rate limit exceeded",
				"limit":  decision.Limit,
				"window": decision.Window,
			})
			c.Abort()
			return
		}

		c.Next()

		// Usage is committed after dispatch; a denied request never
		// consumes quota and every dispatched one counts exactly once
		limiter.RecordRequest(ctx, endpoint, userID)
	}
}
