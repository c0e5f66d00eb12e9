package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetfox/fleetfox/internal/services"
	"github.com/fleetfox/fleetfox/pkg/domain"
)

type removeImageController struct{ svc services.SessionService }

func NewRemoveImageController(svc services.SessionService) *removeImageController {
	return &removeImageController{svc: svc}
}

func (h *removeImageController) Handle(c *gin.Context) {
	slot := domain.PhotoSlot(c.Param("slot"))
	session, err := h.svc.Remove(c.Request.Context(), c.Param("id"), slot)
	if err != nil {
		if errors.Is(err, services.ErrInvalidSlot) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown photo slot"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":   session.ID,
		"filled_count": session.FilledCount(),
	})
}
