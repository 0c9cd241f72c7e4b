package controllers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"raspimon/internal/db"
	"raspimon/internal/models"
	"raspimon/internal/services"

	"github.com/gin-gonic/gin"
)

type SystemController struct {
	store     *db.Store
	hub       *services.BroadcastHub
	collector *services.Collector
	log       *slog.Logger
	version   string
	startedAt time.Time
	now       func() time.Time
}

func NewSystemController(store *db.Store, hub *services.BroadcastHub, collector *services.Collector, log *slog.Logger, version string) *SystemController {
	return &SystemController{
		store:     store,
		hub:       hub,
		collector: collector,
		log:       log,
		version:   version,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// Health reports database reachability and pipeline state
func (sc *SystemController) Health(c *gin.Context) {
	database := "connected"
	status := http.StatusOK
	body := gin.H{"status": "healthy"}
	if err := sc.store.Ping(c.Request.Context()); err != nil {
		sc.log.Error("health check failed", "error", err)
		database = "disconnected"
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["error"] = err.Error()
	}
	body["database"] = database
	body["collector_running"] = sc.collector.Running()
	body["websocket_clients"] = sc.hub.Count()
	body["uptime_seconds"] = int64(sc.now().Sub(sc.startedAt).Seconds())
	body["version"] = sc.version
	body["timestamp"] = sc.now().UTC()
	c.JSON(status, body)
}

// ListEvents pages through audit records.
// Query params: event_type, hours (default 24), limit (default 100), offset.
func (sc *SystemController) ListEvents(c *gin.Context) {
	limit, err := queryInt(c, "limit", 100)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	hours, err := queryInt(c, "hours", 24)
	if err != nil || hours == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hours"})
		return
	}
	if limit == 0 {
		limit = 100
	}

	since := sc.now().Add(-time.Duration(hours) * time.Hour)
	events, total, err := sc.store.ListSystemEvents(c.Request.Context(), c.Query("event_type"), since, limit, offset)
	if err != nil {
		sc.log.Error("list events failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"pagination": gin.H{
			"total":    total,
			"limit":    limit,
			"offset":   offset,
			"has_more": int64(offset+limit) < total,
		},
	})
}

func (sc *SystemController) CreateEvent(c *gin.Context) {
	var ev models.SystemEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event_type is required"})
		return
	}
	id, err := sc.store.InsertEvent(c.Request.Context(), ev)
	if err != nil {
		sc.log.Error("create event failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id, "message": "Event created successfully"})
}

// Info returns the host description recorded when collection started
func (sc *SystemController) Info(c *gin.Context) {
	var system any
	info, err := sc.store.LatestSystemInfo(c.Request.Context())
	switch {
	case err == nil:
		system = info
	case !errors.Is(err, sql.ErrNoRows):
		sc.log.Error("load system info failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"system": system, "timestamp": sc.now().UTC()})
}

// Uptime derives the current host uptime from the recorded boot time
func (sc *SystemController) Uptime(c *gin.Context) {
	info, err := sc.store.LatestSystemInfo(c.Request.Context())
	if errors.Is(err, sql.ErrNoRows) {
		c.JSON(http.StatusNotFound, gin.H{"error": "System info not found"})
		return
	}
	if err != nil {
		sc.log.Error("load system info failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.UptimeSince(info.BootTime, sc.now()))
}

// Stats counts alerts and events of the last 24 hours and rows per table
func (sc *SystemController) Stats(c *gin.Context) {
	stats, err := sc.store.SystemStats(c.Request.Context(), sc.now().Add(-24*time.Hour))
	if err != nil {
		sc.log.Error("system stats failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"system":    stats,
		"database":  stats.Tables,
		"timestamp": sc.now().UTC(),
	})
}

func (sc *SystemController) WebSocketStats(c *gin.Context) {
	c.JSON(http.StatusOK, sc.hub.Stats())
}
