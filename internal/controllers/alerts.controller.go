package controllers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"raspimon/internal/db"
	"raspimon/internal/middleware"
	"raspimon/internal/models"
	"raspimon/internal/services"

	"github.com/gin-gonic/gin"
)

const alertTypesWindow = 7 * 24 * time.Hour

type AlertsController struct {
	engine *services.AlertEngine
	store  *db.Store
	log    *slog.Logger
	now    func() time.Time
}

func NewAlertsController(engine *services.AlertEngine, store *db.Store, log *slog.Logger) *AlertsController {
	return &AlertsController{engine: engine, store: store, log: log, now: time.Now}
}

type resolveRequest struct {
	ResolvedBy string `json:"resolved_by"`
}

type resolveAllRequest struct {
	AlertType  models.AlertType `json:"alert_type"`
	Severity   models.Severity  `json:"severity"`
	ResolvedBy string           `json:"resolved_by"`
}

// ListAlerts filters by type, severity and resolved state
func (ac *AlertsController) ListAlerts(c *gin.Context) {
	var filter models.AlertFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if filter.Severity != "" && !filter.Severity.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid severity"})
		return
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alerts, err := ac.store.ListAlerts(c.Request.Context(), filter, limit)
	if err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

// ListActive returns unresolved alerts, newest first
func (ac *AlertsController) ListActive(c *gin.Context) {
	open := false
	alerts, err := ac.store.ListAlerts(c.Request.Context(), models.AlertFilter{Resolved: &open}, 0)
	if err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// ListTypes summarises the last seven days of alerts per type and severity
func (ac *AlertsController) ListTypes(c *gin.Context) {
	types, err := ac.store.AlertTypeSummary(c.Request.Context(), ac.now().Add(-alertTypesWindow))
	if err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, types)
}

// Summary groups alerts of the last `hours` (default 24) by severity, type and hour
func (ac *AlertsController) Summary(c *gin.Context) {
	hours, err := summaryHours(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	summary, err := ac.store.AlertSummary(c.Request.Context(), ac.now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"period_hours": hours,
		"by_severity":  summary.BySeverity,
		"by_type":      summary.ByType,
		"trend":        summary.Trend,
		"generated_at": ac.now().UTC(),
	})
}

func (ac *AlertsController) Resolve(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}
	var req resolveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	ok, err := ac.engine.ResolveAlert(c.Request.Context(), id, resolver(c, req.ResolvedBy))
	if err != nil {
		ac.fail(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found or already resolved"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Alert resolved successfully"})
}

func (ac *AlertsController) ResolveAll(c *gin.Context) {
	var req resolveAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter := models.AlertFilter{Type: req.AlertType, Severity: req.Severity}
	n, err := ac.engine.ResolveAlerts(c.Request.Context(), filter, resolver(c, req.ResolvedBy))
	if err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("%d alerts resolved successfully", n),
		"count":   n,
	})
}

func (ac *AlertsController) AutoResolve(c *gin.Context) {
	n := ac.engine.AutoResolveAlerts(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"resolved": n})
}

func (ac *AlertsController) GetThresholds(c *gin.Context) {
	c.JSON(http.StatusOK, ac.engine.Thresholds())
}

// UpdateThresholds applies a partial update; the next check uses the new values
func (ac *AlertsController) UpdateThresholds(c *gin.Context) {
	var update models.ThresholdUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	th, err := ac.engine.UpdateThresholds(update)
	if err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, th)
}

func (ac *AlertsController) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		ac.log.Error("alert request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// resolver prefers the explicit name, then the token subject
func resolver(c *gin.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return middleware.Operator(c)
}
