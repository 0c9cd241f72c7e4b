package models

import (
	"fmt"
	"time"
)

// SystemInfo describes the host, recorded once each time collection starts
type SystemInfo struct {
	ID            int64     `json:"id"`
	Hostname      string    `json:"hostname"`
	Platform      string    `json:"platform"`
	Arch          string    `json:"arch"`
	Kernel        string    `json:"kernel"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	BootTime      time.Time `json:"boot_time"`
	CreatedAt     time.Time `json:"created_at"`
}

func (s SystemInfo) Record() Record {
	return Record{
		"hostname":       s.Hostname,
		"platform":       s.Platform,
		"arch":           s.Arch,
		"kernel":         s.Kernel,
		"uptime_seconds": s.UptimeSeconds,
		"boot_time":      s.BootTime.UTC(),
	}
}

func SystemInfoFromRecord(r Record) SystemInfo {
	s := SystemInfo{
		Hostname: r.String("hostname"),
		Platform: r.String("platform"),
		Arch:     r.String("arch"),
		Kernel:   r.String("kernel"),
	}
	s.ID, _ = r.Int("id")
	s.UptimeSeconds, _ = r.Int("uptime_seconds")
	s.BootTime, _ = r.Time("boot_time")
	s.CreatedAt, _ = r.Time("timestamp")
	return s
}

// Uptime is the host uptime derived from the recorded boot time
type Uptime struct {
	Seconds   int64     `json:"seconds"`
	Minutes   int64     `json:"minutes"`
	Hours     int64     `json:"hours"`
	Days      int64     `json:"days"`
	BootTime  time.Time `json:"boot_time"`
	Formatted string    `json:"formatted"`
}

// UptimeSince computes the uptime at now for a host booted at boot
func UptimeSince(boot, now time.Time) Uptime {
	secs := int64(now.Sub(boot).Seconds())
	if secs < 0 {
		secs = 0
	}
	return Uptime{
		Seconds:   secs,
		Minutes:   secs / 60,
		Hours:     secs / 3600,
		Days:      secs / 86400,
		BootTime:  boot,
		Formatted: FormatUptime(secs),
	}
}

// FormatUptime renders seconds as "1d 2h 3m 4s", leaving out zero leading units
func FormatUptime(secs int64) string {
	days := secs / 86400
	hours := secs % 86400 / 3600
	minutes := secs % 3600 / 60
	out := ""
	if days > 0 {
		out += fmt.Sprintf("%dd ", days)
	}
	if hours > 0 {
		out += fmt.Sprintf("%dh ", hours)
	}
	if minutes > 0 {
		out += fmt.Sprintf("%dm ", minutes)
	}
	return out + fmt.Sprintf("%ds", secs%60)
}

// TableCount is the row count of one storage table
type TableCount struct {
	Table string `json:"table_name"`
	Rows  int64  `json:"table_rows"`
}

// SystemStats counts alerts and audit events over the last day, plus rows per table
type SystemStats struct {
	ActiveAlerts int64        `json:"active_alerts"`
	Alerts24h    int64        `json:"alerts_24h"`
	Events24h    int64        `json:"events_24h"`
	Tables       []TableCount `json:"-"`
}

// SeverityCount groups alerts of one severity
type SeverityCount struct {
	Severity Severity `json:"severity"`
	Count    int64    `json:"count"`
	Active   int64    `json:"active_count"`
}

// TypeCount groups alerts of one type
type TypeCount struct {
	Type   AlertType `json:"alert_type"`
	Count  int64     `json:"count"`
	Active int64     `json:"active_count"`
}

// HourlyAlerts counts alerts created in one clock hour
type HourlyAlerts struct {
	Hour     time.Time `json:"hour"`
	Count    int64     `json:"count"`
	Critical int64     `json:"critical_count"`
}

type AlertSummary struct {
	BySeverity []SeverityCount `json:"by_severity"`
	ByType     []TypeCount     `json:"by_type"`
	Trend      []HourlyAlerts  `json:"trend"`
}

// Aggregate holds avg/max/min of a column over a window. Fields are nil
// when the window holds no rows.
type Aggregate struct {
	Avg *float64 `json:"avg_value"`
	Max *float64 `json:"max_value"`
	Min *float64 `json:"min_value"`
}

type CPUSummary struct {
	Aggregate
	AvgTemp *float64 `json:"avg_temp"`
	MaxTemp *float64 `json:"max_temp"`
}

type MemorySummary struct {
	Aggregate
	AvgUsedBytes *float64 `json:"avg_used_bytes"`
}

type DiskSummary struct {
	Aggregate
	Filesystem string `json:"filesystem"`
}

type MetricsSummary struct {
	CPU    CPUSummary    `json:"cpu"`
	Memory MemorySummary `json:"memory"`
	Disk   []DiskSummary `json:"disk"`
}
