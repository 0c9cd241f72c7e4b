package routes

import (
	"raspimon/internal/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterWebSocketRoutes mounts the subscriber endpoint outside /api, so
// long-lived connections bypass the request rate limiter
func RegisterWebSocketRoutes(r *gin.Engine, wc *controllers.WebSocketController) {
	r.GET("/ws", wc.HandleWebSocket)
}
