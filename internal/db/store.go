package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"raspimon/internal/models"
)

var (
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownColumn = errors.New("unknown column")
)

// Tables lists every table subject to retention cleanup
var Tables = []string{
	"cpu_metrics",
	"memory_metrics",
	"disk_metrics",
	"network_metrics",
	"process_metrics",
	"gpu_metrics",
	"alerts",
	"system_events",
}

var columns = map[string][]string{
	"cpu_metrics": {"cpu_usage_percent", "cpu_count", "cpu_freq_current", "cpu_freq_min", "cpu_freq_max",
		"cpu_temp_celsius", "load_avg_1min", "load_avg_5min", "load_avg_15min"},
	"memory_metrics": {"total_bytes", "available_bytes", "used_bytes", "free_bytes", "usage_percent",
		"swap_total_bytes", "swap_used_bytes", "swap_free_bytes", "swap_usage_percent"},
	"disk_metrics": {"filesystem", "mount_point", "total_bytes", "used_bytes", "available_bytes",
		"usage_percent", "inodes_total", "inodes_used", "inodes_free"},
	"network_metrics": {"interface_name", "bytes_sent", "bytes_recv", "packets_sent", "packets_recv",
		"errors_in", "errors_out", "drops_in", "drops_out", "speed_mbps", "duplex", "mtu",
		"bytes_sent_rate", "bytes_recv_rate"},
	"process_metrics": {"running_processes", "sleeping_processes", "zombie_processes", "total_processes",
		"cpu_usage_percent", "memory_usage_percent"},
	"gpu_metrics": {"gpu_temp_celsius", "gpu_memory_used_bytes", "gpu_memory_total_bytes",
		"gpu_usage_percent", "fan_level"},
	"alerts":        {"alert_type", "severity", "message", "metric_value", "threshold_value", "resolved", "resolved_at"},
	"system_events": {"event_type", "event_data", "description"},
	"system_info":   {"hostname", "platform", "arch", "kernel", "uptime_seconds", "boot_time"},
}

// Store is the persistence sink shared by the collector, the alert engine and the API
type Store struct {
	db  *sql.DB
	now func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now, last: make(map[string]time.Time)}
}

// WithClock replaces the clock used to assign row timestamps
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func checkColumn(table, column string) error {
	cols, ok := columns[table]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	if column == "id" || column == "timestamp" {
		return nil
	}
	for _, c := range cols {
		if c == column {
			return nil
		}
	}
	return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, table, column)
}

func checkTable(table string) error {
	if _, ok := columns[table]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	return nil
}

// stamp returns the timestamp for a new row of table, never earlier than the previous one
func (s *Store) stamp(table string) time.Time {
	now := s.now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.last[table]; ok && now.Before(prev) {
		now = prev
	}
	s.last[table] = now
	return now
}

// Insert appends rec to table with a server-assigned timestamp and returns the row id
func (s *Store) Insert(ctx context.Context, table string, rec models.Record) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	keys := make([]string, 0, len(rec))
	for k := range rec {
		if err := checkColumn(table, k); err != nil {
			return 0, err
		}
		if k == "id" || k == "timestamp" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cols := append([]string{"timestamp"}, keys...)
	args := make([]any, 0, len(cols))
	args = append(args, s.stamp(table))
	for _, k := range keys {
		args = append(args, rec[k])
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		table, strings.Join(cols, ","), strings.TrimSuffix(strings.Repeat("?,", len(cols)), ","))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	return res.LastInsertId()
}

// QueryLatest returns the newest limit rows of table, newest first
func (s *Store) QueryLatest(ctx context.Context, table string, limit int) ([]models.Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	return s.query(ctx, fmt.Sprintf(`SELECT * FROM %s ORDER BY timestamp DESC, id DESC LIMIT ?`, table), limit)
}

// QueryRange returns rows of table with start <= timestamp <= end, newest first.
// A non-positive limit returns every matching row.
func (s *Store) QueryRange(ctx context.Context, table string, start, end time.Time, limit int) ([]models.Record, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	return s.query(ctx, fmt.Sprintf(`SELECT * FROM %s WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp DESC, id DESC LIMIT ?`, table), start.UTC(), end.UTC(), limit)
}

// DeleteOlderThan removes rows of table older than days and returns how many were deleted
func (s *Store) DeleteOlderThan(ctx context.Context, table string, days int) (int64, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	cutoff := s.now().UTC().AddDate(0, 0, -days)
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE timestamp < ?`, table), cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup %s: %w", table, err)
	}
	return res.RowsAffected()
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]models.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []models.Record{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(models.Record, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[c] = string(b)
				continue
			}
			rec[c] = values[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
