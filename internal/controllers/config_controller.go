package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fleetfox/fleetfox/pkg/config"
)

type configController struct{ cfg *config.Config }

func NewConfigController(cfg *config.Config) *configController {
	return &configController{cfg: cfg}
}

// Handle serves the public runtime configuration the browser client needs
// before it can do anything. Always 200: a misconfiguration is reported in
// the error field so the client can render it instead of failing blind.
func (h *configController) Handle(c *gin.Context) {
	resp := gin.H{
		"SUPABASE_URL":      h.cfg.StorageBaseURL,
		"SUPABASE_ANON_KEY": h.cfg.StorageAnonKey,
		"N8N_WEBHOOK_URL":   h.cfg.WorkflowWebhookURL,
	}
	if h.cfg.Production() && config.IsLoopbackURL(h.cfg.WorkflowWebhookURL) {
		resp["error"] = "workflow webhook points at a loopback address in production"
	}
	c.JSON(http.StatusOK, resp)
}
