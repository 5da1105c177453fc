package handler

import (
	"net/http"

	"github.com/firescope/resource-governor/internal/service"
	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	service *service.SubscriptionService
	tiers   map[string]float64
}

func NewSubscriptionHandler(service *service.SubscriptionService, tiers map[string]float64) *SubscriptionHandler {
	return &SubscriptionHandler{
		service: service,
		tiers:   tiers,
	}
}

// Handles GET /admin/subscriptions
func (h *SubscriptionHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	subs, err := h.service.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, subs)
}

// Handles GET /admin/subscriptions/:user_id
func (h *SubscriptionHandler) Get(c *gin.Context) {
	userID := c.Param("user_id")

	ctx := c.Request.Context()
	sub, err := h.service.Get(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if sub == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
		return
	}

	c.JSON(http.StatusOK, sub)
}

// Handles PUT /admin/subscriptions/:user_id
func (h *SubscriptionHandler) SetTier(c *gin.Context) {
	userID := c.Param("user_id")

	var req struct {
		Tier string `json:"tier" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, known := h.tiers[req.Tier]; !known {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown tier: " + req.Tier})
		return
	}

	ctx := c.Request.Context()
	if err := h.service.SetTier(ctx, userID, req.Tier); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Subscription updated successfully",
		"user_id": userID,
		"tier":    req.Tier,
	})
}

// Handles DELETE /admin/subscriptions/:user_id
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	userID := c.Param("user_id")

	ctx := c.Request.Context()
	if err := h.service.Cancel(ctx, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Subscription canceled successfully"})
}
