package routes

import (
	"raspimon/internal/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterAlertRoutes mounts the alert API. Mutating routes go through requireOperator.
func RegisterAlertRoutes(api *gin.RouterGroup, ac *controllers.AlertsController, requireOperator gin.HandlerFunc) {
	alerts := api.Group("/alerts")
	{
		alerts.GET("", ac.ListAlerts)
		alerts.GET("/active", ac.ListActive)
		alerts.GET("/types", ac.ListTypes)
		alerts.GET("/summary", ac.Summary)
		alerts.GET("/thresholds", ac.GetThresholds)

		alerts.PUT("/thresholds", requireOperator, ac.UpdateThresholds)
		alerts.PUT("/resolve-all", requireOperator, ac.ResolveAll)
		alerts.PUT("/:id/resolve", requireOperator, ac.Resolve)
		alerts.POST("/auto-resolve", requireOperator, ac.AutoResolve)
	}
}
