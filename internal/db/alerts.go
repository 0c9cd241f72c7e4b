package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"raspimon/internal/models"
)

// InsertAlert persists an unresolved alert and returns its id and creation time
func (s *Store) InsertAlert(ctx context.Context, c models.AlertCandidate) (int64, time.Time, error) {
	at := s.stamp("alerts")
	rec := c.Record()
	res, err := s.db.ExecContext(ctx, `INSERT INTO alerts
		(timestamp,alert_type,severity,message,metric_value,threshold_value,resolved)
		VALUES (?,?,?,?,?,?,0)`,
		at, rec["alert_type"], rec["severity"], rec["message"], rec["metric_value"], rec["threshold_value"])
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("insert alert: %w", err)
	}
	id, err := res.LastInsertId()
	return id, at, err
}

// GetAlert loads one alert by id
func (s *Store) GetAlert(ctx context.Context, id int64) (models.Alert, error) {
	recs, err := s.query(ctx, `SELECT * FROM alerts WHERE id = ?`, id)
	if err != nil {
		return models.Alert{}, err
	}
	if len(recs) == 0 {
		return models.Alert{}, sql.ErrNoRows
	}
	return models.AlertFromRecord(recs[0]), nil
}

// ResolveAlert marks an open alert resolved. It reports false when the
// alert does not exist or was already resolved, leaving resolved_at untouched.
func (s *Store) ResolveAlert(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET resolved = 1, resolved_at = ?
		WHERE id = ? AND resolved = 0`, s.now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("resolve alert %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ResolveAlerts resolves every open alert matching filter and returns the count
func (s *Store) ResolveAlerts(ctx context.Context, filter models.AlertFilter) (int64, error) {
	where, args := alertWhere(models.AlertFilter{Type: filter.Type, Severity: filter.Severity})
	where = append(where, "resolved = 0")
	query := `UPDATE alerts SET resolved = 1, resolved_at = ? WHERE ` + strings.Join(where, " AND ")
	res, err := s.db.ExecContext(ctx, query, append([]any{s.now().UTC()}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("bulk resolve alerts: %w", err)
	}
	return res.RowsAffected()
}

// AutoResolveAlerts resolves open alerts of rule.Type for which a metric row
// newer than the alert, and not older than since, reads below rule.Below.
func (s *Store) AutoResolveAlerts(ctx context.Context, rule models.AutoResolveRule, since time.Time) (int64, error) {
	if err := checkColumn(rule.Table, rule.Column); err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`UPDATE alerts SET resolved = 1, resolved_at = ?
		WHERE resolved = 0 AND alert_type = ? AND EXISTS (
			SELECT 1 FROM %s m
			WHERE m.timestamp > alerts.timestamp AND m.timestamp >= ? AND m.%s < ?
		)`, rule.Table, rule.Column)
	res, err := s.db.ExecContext(ctx, query, s.now().UTC(), string(rule.Type), since.UTC(), rule.Below)
	if err != nil {
		return 0, fmt.Errorf("auto resolve %s: %w", rule.Type, err)
	}
	return res.RowsAffected()
}

// ListAlerts returns alerts matching filter, newest first
func (s *Store) ListAlerts(ctx context.Context, filter models.AlertFilter, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	where, args := alertWhere(filter)
	query := `SELECT * FROM alerts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY timestamp DESC, id DESC LIMIT ?`
	recs, err := s.query(ctx, query, append(args, limit)...)
	if err != nil {
		return nil, err
	}
	out := make([]models.Alert, 0, len(recs))
	for _, r := range recs {
		out = append(out, models.AlertFromRecord(r))
	}
	return out, nil
}

// AlertTypeSummary groups alerts created since the given time by type and severity
func (s *Store) AlertTypeSummary(ctx context.Context, since time.Time) ([]models.AlertTypeCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT alert_type, severity, COUNT(*),
		SUM(CASE WHEN resolved = 0 THEN 1 ELSE 0 END), MAX(timestamp)
		FROM alerts WHERE timestamp >= ?
		GROUP BY alert_type, severity
		ORDER BY COUNT(*) DESC, alert_type`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.AlertTypeCount{}
	for rows.Next() {
		var c models.AlertTypeCount
		var last sql.NullString
		if err := rows.Scan(&c.Type, &c.Severity, &c.Count, &c.Active, &last); err != nil {
			return nil, err
		}
		if t, ok := (models.Record{"t": last.String}).Time("t"); ok {
			c.LastAlert = t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func alertWhere(f models.AlertFilter) ([]string, []any) {
	var where []string
	var args []any
	if f.Type != "" {
		where = append(where, "alert_type = ?")
		args = append(args, string(f.Type))
	}
	if f.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, string(f.Severity))
	}
	if f.Resolved != nil {
		where = append(where, "resolved = ?")
		args = append(args, *f.Resolved)
	}
	return where, args
}
