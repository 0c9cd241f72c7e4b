package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"raspimon/internal/models"
)

// LatestSystemInfo returns the most recently recorded host description,
// or sql.ErrNoRows when collection never started
func (s *Store) LatestSystemInfo(ctx context.Context) (models.SystemInfo, error) {
	recs, err := s.query(ctx, `SELECT * FROM system_info ORDER BY timestamp DESC, id DESC LIMIT 1`)
	if err != nil {
		return models.SystemInfo{}, err
	}
	if len(recs) == 0 {
		return models.SystemInfo{}, sql.ErrNoRows
	}
	return models.SystemInfoFromRecord(recs[0]), nil
}

// SystemStats counts open alerts, alerts and events since the given time, and rows per table
func (s *Store) SystemStats(ctx context.Context, since time.Time) (models.SystemStats, error) {
	var st models.SystemStats
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM alerts WHERE resolved = 0),
		(SELECT COUNT(*) FROM alerts WHERE timestamp >= ?),
		(SELECT COUNT(*) FROM system_events WHERE timestamp >= ?)`,
		since.UTC(), since.UTC()).Scan(&st.ActiveAlerts, &st.Alerts24h, &st.Events24h)
	if err != nil {
		return st, fmt.Errorf("system stats: %w", err)
	}

	tables := append(append([]string{}, Tables...), "system_info")
	for _, table := range tables {
		var n int64
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			return st, fmt.Errorf("count %s: %w", table, err)
		}
		st.Tables = append(st.Tables, models.TableCount{Table: table, Rows: n})
	}
	sort.SliceStable(st.Tables, func(i, j int) bool { return st.Tables[i].Rows > st.Tables[j].Rows })
	return st, nil
}

// AlertSummary groups alerts created since the given time by severity, by
// type and by clock hour, newest hour first
func (s *Store) AlertSummary(ctx context.Context, since time.Time) (models.AlertSummary, error) {
	out := models.AlertSummary{
		BySeverity: []models.SeverityCount{},
		ByType:     []models.TypeCount{},
		Trend:      []models.HourlyAlerts{},
	}

	rows, err := s.db.QueryContext(ctx, `SELECT severity, COUNT(*), SUM(CASE WHEN resolved = 0 THEN 1 ELSE 0 END)
		FROM alerts WHERE timestamp >= ? GROUP BY severity ORDER BY severity`, since.UTC())
	if err != nil {
		return out, err
	}
	for rows.Next() {
		var c models.SeverityCount
		if err := rows.Scan(&c.Severity, &c.Count, &c.Active); err != nil {
			rows.Close()
			return out, err
		}
		out.BySeverity = append(out.BySeverity, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return out, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT alert_type, COUNT(*), SUM(CASE WHEN resolved = 0 THEN 1 ELSE 0 END)
		FROM alerts WHERE timestamp >= ? GROUP BY alert_type ORDER BY COUNT(*) DESC, alert_type`, since.UTC())
	if err != nil {
		return out, err
	}
	for rows.Next() {
		var c models.TypeCount
		if err := rows.Scan(&c.Type, &c.Count, &c.Active); err != nil {
			rows.Close()
			return out, err
		}
		out.ByType = append(out.ByType, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return out, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT severity, timestamp FROM alerts WHERE timestamp >= ?`, since.UTC())
	if err != nil {
		return out, err
	}
	defer rows.Close()
	hours := map[time.Time]*models.HourlyAlerts{}
	for rows.Next() {
		var sev string
		var ts any
		if err := rows.Scan(&sev, &ts); err != nil {
			return out, err
		}
		at, ok := models.Record{"t": ts}.Time("t")
		if !ok {
			continue
		}
		h := at.UTC().Truncate(time.Hour)
		b, ok := hours[h]
		if !ok {
			b = &models.HourlyAlerts{Hour: h}
			hours[h] = b
		}
		b.Count++
		if models.Severity(sev) == models.SeverityCritical {
			b.Critical++
		}
	}
	if err := rows.Err(); err != nil {
		return out, err
	}
	for _, b := range hours {
		out.Trend = append(out.Trend, *b)
	}
	sort.Slice(out.Trend, func(i, j int) bool { return out.Trend[i].Hour.After(out.Trend[j].Hour) })
	return out, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// MetricsSummary aggregates cpu, memory and per-filesystem disk usage since the given time
func (s *Store) MetricsSummary(ctx context.Context, since time.Time) (models.MetricsSummary, error) {
	out := models.MetricsSummary{Disk: []models.DiskSummary{}}

	var avg, hi, lo, avgTemp, maxTemp sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT AVG(cpu_usage_percent), MAX(cpu_usage_percent), MIN(cpu_usage_percent),
		AVG(cpu_temp_celsius), MAX(cpu_temp_celsius)
		FROM cpu_metrics WHERE timestamp >= ?`, since.UTC()).Scan(&avg, &hi, &lo, &avgTemp, &maxTemp)
	if err != nil {
		return out, fmt.Errorf("cpu summary: %w", err)
	}
	out.CPU = models.CPUSummary{
		Aggregate: models.Aggregate{Avg: nullFloat(avg), Max: nullFloat(hi), Min: nullFloat(lo)},
		AvgTemp:   nullFloat(avgTemp),
		MaxTemp:   nullFloat(maxTemp),
	}

	var avgUsed sql.NullFloat64
	err = s.db.QueryRowContext(ctx, `SELECT AVG(usage_percent), MAX(usage_percent), MIN(usage_percent), AVG(used_bytes)
		FROM memory_metrics WHERE timestamp >= ?`, since.UTC()).Scan(&avg, &hi, &lo, &avgUsed)
	if err != nil {
		return out, fmt.Errorf("memory summary: %w", err)
	}
	out.Memory = models.MemorySummary{
		Aggregate:    models.Aggregate{Avg: nullFloat(avg), Max: nullFloat(hi), Min: nullFloat(lo)},
		AvgUsedBytes: nullFloat(avgUsed),
	}

	rows, err := s.db.QueryContext(ctx, `SELECT filesystem, AVG(usage_percent), MAX(usage_percent), MIN(usage_percent)
		FROM disk_metrics WHERE timestamp >= ? GROUP BY filesystem ORDER BY filesystem`, since.UTC())
	if err != nil {
		return out, fmt.Errorf("disk summary: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d models.DiskSummary
		if err := rows.Scan(&d.Filesystem, &avg, &hi, &lo); err != nil {
			return out, err
		}
		d.Aggregate = models.Aggregate{Avg: nullFloat(avg), Max: nullFloat(hi), Min: nullFloat(lo)}
		out.Disk = append(out.Disk, d)
	}
	return out, rows.Err()
}
