package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetfox/fleetfox/internal/services"
)

type getVerdictController struct{ svc services.VerdictService }

func NewGetVerdictController(svc services.VerdictService) *getVerdictController {
	return &getVerdictController{svc: svc}
}

func (h *getVerdictController) Handle(c *gin.Context) {
	ev, err := h.svc.Get(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ev)
}
