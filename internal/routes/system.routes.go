package routes

import (
	"raspimon/internal/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterSystemRoutes(api *gin.RouterGroup, sc *controllers.SystemController, requireOperator gin.HandlerFunc) {
	api.GET("/health", sc.Health)

	system := api.Group("/system")
	{
		system.GET("/info", sc.Info)
		system.GET("/uptime", sc.Uptime)
		system.GET("/stats", sc.Stats)
		system.GET("/events", sc.ListEvents)
		system.POST("/events", requireOperator, sc.CreateEvent)
		system.GET("/websocket", sc.WebSocketStats)
	}
}
