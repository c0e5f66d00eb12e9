package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetfox/fleetfox/internal/repository"
)

type listClientsController struct{ repo repository.ClientRepository }

func NewListClientsController(repo repository.ClientRepository) *listClientsController {
	return &listClientsController{repo: repo}
}

func (h *listClientsController) Handle(c *gin.Context) {
	clients, err := h.repo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients})
}
