package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetfox/fleetfox/internal/services"
)

type getSessionController struct {
	sessions   services.SessionService
	reconciler services.ReconcilerService
}

func NewGetSessionController(sessions services.SessionService, reconciler services.ReconcilerService) *getSessionController {
	return &getSessionController{sessions: sessions, reconciler: reconciler}
}

// Handle restores a session: stored slots are probed and stale ones evicted
// before rendering, so the client never rehydrates dead image URLs.
func (h *getSessionController) Handle(c *gin.Context) {
	sessionID := c.Param("id")
	session, err := h.sessions.Restore(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	taskID, foxID := h.reconciler.Identity(sessionID)
	c.JSON(http.StatusOK, gin.H{
		"session":       session,
		"task_id":       taskID,
		"fox_id":        foxID,
		"missing_slots": session.MissingSlots(),
		"state":         h.reconciler.State(c.Request.Context(), sessionID),
	})
}
