package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetfox/fleetfox/internal/services"
)

type createSubscriptionController struct{ svc services.SubscriptionService }

func NewCreateSubscriptionController(svc services.SubscriptionService) *createSubscriptionController {
	return &createSubscriptionController{svc: svc}
}

type createSubscriptionReq struct {
	CallbackURL        string `json:"callbackUrl" binding:"required"`
	FoxID              string `json:"foxId,omitempty"`
	ClientID           string `json:"clientId,omitempty"`
	TTLSeconds         int    `json:"ttlSeconds,omitempty"`
	MinIntervalSeconds int    `json:"minIntervalSeconds,omitempty"`
}

func (h *createSubscriptionController) Handle(c *gin.Context) {
	var req createSubscriptionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	sub, err := h.svc.Create(c.Request.Context(), req.CallbackURL, req.FoxID, req.ClientID, req.TTLSeconds, req.MinIntervalSeconds)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subscriptionId": sub.ID,
		"expiresAt":      sub.ExpiresAt,
	})
}
