package handler

import (
	"net/http"

	"github.com/firescope/resource-governor/internal/monitor"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Exposes the query performance monitor over the admin API
type PerformanceHandler struct {
	monitor *monitor.Monitor
}

func NewPerformanceHandler(mon *monitor.Monitor) *PerformanceHandler {
	return &PerformanceHandler{monitor: mon}
}

// Handles GET /admin/performance
func (h *PerformanceHandler) GetReport(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitor.Report())
}

// Handles GET /admin/performance/alerts
func (h *PerformanceHandler) GetAlerts(c *gin.Context) {
	includeResolved := c.Query("include_resolved") == "true"

	c.JSON(http.StatusOK, gin.H{
		"alerts":       h.monitor.Alerts().Alerts(includeResolved),
		"active_count": h.monitor.Alerts().ActiveCount(),
	})
}

// Handles POST /admin/performance/alerts/:id/resolve
func (h *PerformanceHandler) ResolveAlert(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert ID"})
		return
	}

	if !h.monitor.Alerts().Resolve(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Alert resolved successfully"})
}
