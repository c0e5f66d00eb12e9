package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetfox/fleetfox/internal/middleware"
	"github.com/fleetfox/fleetfox/internal/services"
	"github.com/fleetfox/fleetfox/pkg/domain"
)

type submitController struct{ svc services.ReconcilerService }

func NewSubmitController(svc services.ReconcilerService) *submitController {
	return &submitController{svc: svc}
}

type submitReq struct {
	ClientID  string `json:"client_id,omitempty"`
	VehicleID string `json:"vehicle_id,omitempty"`
	FoxID     string `json:"fox_id,omitempty"`
}

func (h *submitController) Handle(c *gin.Context) {
	var req submitReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
	}

	view, err := h.svc.Submit(c.Request.Context(), c.Param("id"), services.SubmitMeta{
		ClientID:    req.ClientID,
		VehicleID:   req.VehicleID,
		FoxID:       req.FoxID,
		AuthSubject: middleware.Subject(c),
	})
	if err != nil {
		if errors.Is(err, services.ErrSubmissionInFlight) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	switch view.Phase {
	case services.PhaseAwaitingCompletion:
		titles := make([]string, len(view.Missing))
		for i, slot := range view.Missing {
			titles[i] = slot.Title()
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"state":          view,
			"missing_photos": titles,
		})
	case services.PhaseErrored:
		status := http.StatusBadGateway
		if view.Outcome != nil && view.Outcome.Kind == domain.OutcomeConfigError {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"state": view})
	default:
		c.JSON(http.StatusOK, gin.H{"state": view})
	}
}
