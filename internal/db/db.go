package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens the sqlite database at path with a pool of at most maxConns
// connections. Callers block on the pool when it is exhausted.
func Open(path string, maxConns int) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir data dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA synchronous=NORMAL; PRAGMA temp_store=MEMORY;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cpu_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			cpu_usage_percent REAL NOT NULL,
			cpu_count INTEGER NOT NULL,
			cpu_freq_current REAL,
			cpu_freq_min REAL,
			cpu_freq_max REAL,
			cpu_temp_celsius REAL,
			load_avg_1min REAL,
			load_avg_5min REAL,
			load_avg_15min REAL
		);`,
		`CREATE TABLE IF NOT EXISTS memory_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			total_bytes INTEGER NOT NULL,
			available_bytes INTEGER NOT NULL,
			used_bytes INTEGER NOT NULL,
			free_bytes INTEGER NOT NULL,
			usage_percent REAL NOT NULL,
			swap_total_bytes INTEGER NOT NULL DEFAULT 0,
			swap_used_bytes INTEGER NOT NULL DEFAULT 0,
			swap_free_bytes INTEGER NOT NULL DEFAULT 0,
			swap_usage_percent REAL NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS disk_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			filesystem TEXT NOT NULL,
			mount_point TEXT NOT NULL,
			total_bytes INTEGER NOT NULL,
			used_bytes INTEGER NOT NULL,
			available_bytes INTEGER NOT NULL,
			usage_percent REAL NOT NULL,
			inodes_total INTEGER,
			inodes_used INTEGER,
			inodes_free INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS network_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			interface_name TEXT NOT NULL,
			bytes_sent INTEGER NOT NULL,
			bytes_recv INTEGER NOT NULL,
			packets_sent INTEGER NOT NULL,
			packets_recv INTEGER NOT NULL,
			errors_in INTEGER NOT NULL DEFAULT 0,
			errors_out INTEGER NOT NULL DEFAULT 0,
			drops_in INTEGER NOT NULL DEFAULT 0,
			drops_out INTEGER NOT NULL DEFAULT 0,
			speed_mbps INTEGER,
			duplex TEXT,
			mtu INTEGER,
			bytes_sent_rate REAL NOT NULL DEFAULT 0,
			bytes_recv_rate REAL NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS process_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			running_processes INTEGER NOT NULL,
			sleeping_processes INTEGER NOT NULL,
			zombie_processes INTEGER NOT NULL,
			total_processes INTEGER NOT NULL,
			cpu_usage_percent REAL NOT NULL DEFAULT 0,
			memory_usage_percent REAL NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS gpu_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			gpu_temp_celsius REAL,
			gpu_memory_used_bytes INTEGER,
			gpu_memory_total_bytes INTEGER,
			gpu_usage_percent REAL,
			fan_level INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			alert_type TEXT NOT NULL,
			severity TEXT NOT NULL CHECK (severity IN ('low','medium','high','critical')),
			message TEXT NOT NULL,
			metric_value REAL,
			threshold_value REAL,
			resolved BOOLEAN NOT NULL DEFAULT 0,
			resolved_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS system_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			event_type TEXT NOT NULL,
			event_data TEXT,
			description TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS system_info (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL,
			hostname TEXT NOT NULL,
			platform TEXT NOT NULL,
			arch TEXT NOT NULL,
			kernel TEXT NOT NULL,
			uptime_seconds INTEGER NOT NULL,
			boot_time DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_cpu_metrics_ts ON cpu_metrics(timestamp DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_memory_metrics_ts ON memory_metrics(timestamp DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_disk_metrics_ts ON disk_metrics(timestamp DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_network_metrics_ts ON network_metrics(timestamp DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_process_metrics_ts ON process_metrics(timestamp DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_gpu_metrics_ts ON gpu_metrics(timestamp DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_resolved_ts ON alerts(resolved, timestamp DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_type ON alerts(alert_type);`,
		`CREATE INDEX IF NOT EXISTS idx_system_events_type_ts ON system_events(event_type, timestamp DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}
	return nil
}
