package routes

import (
	"raspimon/internal/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterMetricsRoutes(api *gin.RouterGroup, mc *controllers.MetricsController) {
	metrics := api.Group("/metrics")
	{
		metrics.GET("/latest", mc.GetLatest)
		metrics.GET("/live", mc.GetLive)
		metrics.GET("/summary", mc.GetSummary)
		metrics.GET("/:category", mc.GetMetricHistory)
	}
}
