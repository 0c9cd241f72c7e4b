package controllers

import (
	"log/slog"
	"net/http"

	"raspimon/internal/middleware"
	"raspimon/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WebSocketController struct {
	hub      *services.BroadcastHub
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewWebSocketController accepts upgrades whose Origin passes the allow list.
// Requests without an Origin header are not browsers and always pass.
func NewWebSocketController(hub *services.BroadcastHub, allowedOrigins []string, sl *middleware.SecurityLogger, log *slog.Logger) *WebSocketController {
	return &WebSocketController{
		hub: hub,
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || middleware.OriginAllowed(allowedOrigins, origin) {
					return true
				}
				sl.LogRejectedOrigin(r.RemoteAddr, origin)
				return false
			},
		},
	}
}

// HandleWebSocket upgrades the request and serves the connection until it closes
func (wc *WebSocketController) HandleWebSocket(c *gin.Context) {
	ws, err := wc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		wc.log.Warn("ws: upgrade failed", "ip", c.ClientIP(), "error", err)
		return
	}
	wc.hub.Serve(ws, c.ClientIP(), c.Request.UserAgent())
}
