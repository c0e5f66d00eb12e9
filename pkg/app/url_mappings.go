package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fleetfox/fleetfox/internal/controllers"
	"github.com/fleetfox/fleetfox/internal/middleware"
)

func SetupMappings(app *Application) {
	app.Engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "ws_clients": app.Hub.ClientCount()})
	})
	app.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	app.Engine.GET("/ws", gin.WrapF(app.Hub.ServeWS))

	app.Engine.GET("/api/config", controllers.NewConfigController(app.Config).Handle)

	if app.Config.StorageBackend == "local" {
		app.Engine.Static("/files", app.Config.StorageDir)
	}

	v1 := app.Engine.Group("/v1/qa", middleware.AuthMiddleware(app.Validator))
	{
		v1.GET("/sessions/:id", controllers.NewGetSessionController(app.Sessions, app.Reconciler).Handle)
		v1.POST("/sessions/:id/images/:slot", controllers.NewUploadImageController(app.Sessions).Handle)
		v1.DELETE("/sessions/:id/images/:slot", controllers.NewRemoveImageController(app.Sessions).Handle)
		v1.POST("/sessions/:id/submit", controllers.NewSubmitController(app.Reconciler).Handle)

		v1.POST("/verdicts",
			middleware.RateLimitIngest(app.RateLimiter, app.Config),
			controllers.NewVerdictIngestController(app.Verdicts, app.Config.WebhookHmacSecret).Handle)
		v1.GET("/verdicts", controllers.NewListVerdictsController(app.Verdicts).Handle)
		v1.GET("/verdicts/:taskId", controllers.NewGetVerdictController(app.Verdicts).Handle)

		v1.GET("/clients", controllers.NewListClientsController(app.Clients).Handle)
		v1.POST("/subscriptions", controllers.NewCreateSubscriptionController(app.Subscriptions).Handle)
	}
}
