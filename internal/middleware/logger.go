package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		requestID := c.GetString("request_id")

		// Auth middleware fills user_id during c.Next(); anonymous
		// requests log as "-"
		userID := c.GetString("user_id")
		if userID == "" {
			userID = "-"
		}

		limited := ""
		if c.GetBool("rate_limited") {
			limited = " rate-limited"
		}

		log.Printf("[%s] %s %s - %d - %v - %s - user %s%s",
			requestID,
			method,
			path,
			statusCode,
			latency,
			c.ClientIP(),
			userID,
			limited,
		)
	}
}
