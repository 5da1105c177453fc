package handler

import (
	"net/http"

	"github.com/firescope/resource-governor/internal/storage"
	"github.com/gin-gonic/gin"
)

// Handles system-related endpoints
type SystemHandler struct {
	redis *storage.RedisClient
}

func NewSystemHandler(redis *storage.RedisClient) *SystemHandler {
	return &SystemHandler{
		redis: redis,
	}
}

// Returns the status of the counter-store circuit breaker
func (h *SystemHandler) CircuitBreakerStatus(c *gin.Context) {
	if h.redis == nil {
		c.JSON(http.StatusOK, gin.H{
			"store": "memory",
		})
		return
	}

	metrics := h.redis.BreakerMetrics()

	c.JSON(http.StatusOK, gin.H{
		"store":             "redis",
		"state":             metrics.State.String(),
		"failure_count":     metrics.FailureCount,
		"success_count":     metrics.SuccessCount,
		"last_failure_time": metrics.LastFailureTime,
		"last_state_change": metrics.LastStateChange,
	})
}

// Manually resets the counter-store circuit breaker
func (h *SystemHandler) ResetCircuitBreaker(c *gin.Context) {
	if h.redis == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No circuit breaker on the in-memory store",
		})
		return
	}

	h.redis.ResetBreaker()

	c.JSON(http.StatusOK, gin.H{
		"message": "Circuit breaker reset successfully",
	})
}
