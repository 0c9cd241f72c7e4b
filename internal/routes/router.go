package routes

import (
	"log/slog"

	"raspimon/internal/controllers"
	"raspimon/internal/db"
	"raspimon/internal/middleware"
	"raspimon/internal/services"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type Dependencies struct {
	Store    *db.Store
	Pipeline *services.Pipeline
	Auth     *services.AuthService
	Log      *slog.Logger

	AllowedOrigins []string
	RateLimit      float64
	Version        string
}

// New builds the HTTP surface: the REST API under /api and the websocket endpoint at /ws
func New(d Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(d.Log))

	sl := middleware.NewSecurityLogger(d.Log)
	requireOperator := middleware.RequireOperator(d.Auth, sl)
	burst := int(d.RateLimit * 2)

	api := r.Group("/api")
	api.Use(
		middleware.SecurityHeadersMiddleware(),
		middleware.CORSMiddleware(d.AllowedOrigins),
		middleware.RateLimitMiddleware(middleware.NewRateLimiter(rate.Limit(d.RateLimit), burst, d.Log)),
	)

	p := d.Pipeline
	RegisterMetricsRoutes(api, controllers.NewMetricsController(d.Store, p.Cache, d.Log))
	RegisterAlertRoutes(api, controllers.NewAlertsController(p.Alerts, d.Store, d.Log), requireOperator)
	RegisterSystemRoutes(api, controllers.NewSystemController(d.Store, p.Hub, p.Collector, d.Log, d.Version), requireOperator)
	RegisterWebSocketRoutes(r, controllers.NewWebSocketController(p.Hub, d.AllowedOrigins, sl, d.Log))

	return r
}
