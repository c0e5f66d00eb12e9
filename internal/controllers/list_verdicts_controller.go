package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fleetfox/fleetfox/internal/services"
)

type listVerdictsController struct{ svc services.VerdictService }

func NewListVerdictsController(svc services.VerdictService) *listVerdictsController {
	return &listVerdictsController{svc: svc}
}

func (h *listVerdictsController) Handle(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, err := h.svc.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"verdicts": events, "count": len(events)})
}
