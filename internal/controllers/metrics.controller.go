package controllers

import (
	"log/slog"
	"net/http"
	"time"

	"raspimon/internal/db"
	"raspimon/internal/models"
	"raspimon/internal/services"

	"github.com/gin-gonic/gin"
)

// rows per category returned by GetLatest
var latestLimits = map[models.Category]int{
	models.CategoryCPU:     1,
	models.CategoryMemory:  1,
	models.CategoryDisk:    5,
	models.CategoryNetwork: 10,
	models.CategoryProcess: 1,
	models.CategoryGPU:     1,
}

type MetricsController struct {
	store *db.Store
	cache *services.SnapshotCache
	log   *slog.Logger
	now   func() time.Time
}

func NewMetricsController(store *db.Store, cache *services.SnapshotCache, log *slog.Logger) *MetricsController {
	return &MetricsController{store: store, cache: cache, log: log, now: time.Now}
}

// GetLatest returns the newest stored rows of every category
func (mc *MetricsController) GetLatest(c *gin.Context) {
	out := gin.H{}
	for _, cat := range models.Categories {
		rows, err := mc.store.QueryLatest(c.Request.Context(), cat.Table(), latestLimits[cat])
		if err != nil {
			mc.fail(c, err)
			return
		}
		key := string(cat)
		if cat == models.CategoryProcess {
			key = "processes"
		}
		out[key] = rows
	}
	out["timestamp"] = mc.now().UTC()
	c.JSON(http.StatusOK, out)
}

// GetLive returns the snapshot of the most recent sampling tick
func (mc *MetricsController) GetLive(c *gin.Context) {
	snap, ok := mc.cache.Latest()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no live metrics yet"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GetSummary aggregates cpu, memory and disk usage over the last `hours` (default 24)
func (mc *MetricsController) GetSummary(c *gin.Context) {
	hours, err := summaryHours(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	summary, err := mc.store.MetricsSummary(c.Request.Context(), mc.now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		mc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"period_hours": hours,
		"cpu":          summary.CPU,
		"memory":       summary.Memory,
		"disk":         summary.Disk,
		"generated_at": mc.now().UTC(),
	})
}

func (mc *MetricsController) fail(c *gin.Context, err error) {
	mc.log.Error("metrics query failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
