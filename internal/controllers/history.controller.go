package controllers

import (
	"net/http"
	"strconv"
	"time"

	"raspimon/internal/models"

	"github.com/gin-gonic/gin"
)

// GetMetricHistory returns stored rows of one category, newest first.
// Query params: hours=N or duration=10m for a window ending now, limit (default 100).
// Without a window the newest limit rows are returned.
func (mc *MetricsController) GetMetricHistory(c *gin.Context) {
	cat, ok := models.ParseCategory(c.Param("category"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown metrics category"})
		return
	}

	limit, err := queryInt(c, "limit", 100)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	window, err := historyWindow(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var rows []models.Record
	if window > 0 {
		end := mc.now()
		rows, err = mc.store.QueryRange(c.Request.Context(), cat.Table(), end.Add(-window), end, limit)
	} else {
		rows, err = mc.store.QueryLatest(c.Request.Context(), cat.Table(), limit)
	}
	if err != nil {
		mc.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category": cat,
		"count":    len(rows),
		"data":     rows,
	})
}

func historyWindow(c *gin.Context) (time.Duration, error) {
	if raw := c.Query("hours"); raw != "" {
		hours, err := strconv.ParseFloat(raw, 64)
		if err != nil || hours <= 0 {
			return 0, errInvalidParam("hours")
		}
		return time.Duration(hours * float64(time.Hour)), nil
	}
	if raw := c.Query("duration"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return 0, errInvalidParam("duration")
		}
		return d, nil
	}
	return 0, nil
}
