package models

import "time"

// AlertType names the rule that raised an alert
type AlertType string

const (
	AlertCPUUsageHigh        AlertType = "cpu_usage_high"
	AlertCPUTemperatureHigh  AlertType = "cpu_temperature_high"
	AlertMemoryUsageHigh     AlertType = "memory_usage_high"
	AlertSwapUsageHigh       AlertType = "swap_usage_high"
	AlertDiskUsageHigh       AlertType = "disk_usage_high"
	AlertGPUTemperatureHigh  AlertType = "gpu_temperature_high"
	AlertLoadAverageHigh     AlertType = "load_average_high"
	AlertZombieProcessesHigh AlertType = "zombie_processes_high"
	AlertProcessCountHigh    AlertType = "process_count_high"
)

// Severity grades how far a reading is past its threshold
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the four known severities
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// AlertKey is the cooldown identity of an alert
type AlertKey struct {
	Type     AlertType
	Severity Severity
}

// AlertCandidate is a threshold breach found by a rule, before cooldown filtering
type AlertCandidate struct {
	Type           AlertType
	Severity       Severity
	Message        string
	MetricValue    float64
	ThresholdValue float64
	// Target names the filesystem for disk alerts. It is not part of the key.
	Target string
}

// Key returns the cooldown key of the candidate
func (c AlertCandidate) Key() AlertKey {
	return AlertKey{Type: c.Type, Severity: c.Severity}
}

// Record returns the alerts row for a new, unresolved alert
func (c AlertCandidate) Record() Record {
	return Record{
		"alert_type":      string(c.Type),
		"severity":        string(c.Severity),
		"message":         c.Message,
		"metric_value":    c.MetricValue,
		"threshold_value": c.ThresholdValue,
		"resolved":        false,
	}
}

// Alert is a persisted alert row
type Alert struct {
	ID             int64      `json:"id"`
	Type           AlertType  `json:"alert_type"`
	Severity       Severity   `json:"severity"`
	Message        string     `json:"message"`
	MetricValue    float64    `json:"metric_value"`
	ThresholdValue float64    `json:"threshold_value"`
	Resolved       bool       `json:"resolved"`
	ResolvedAt     *time.Time `json:"resolved_at"`
	CreatedAt      time.Time  `json:"timestamp"`
}

// AlertFromRecord converts a stored alerts row
func AlertFromRecord(r Record) Alert {
	id, _ := r.Int("id")
	metric, _ := r.Float("metric_value")
	threshold, _ := r.Float("threshold_value")
	resolved, _ := r.Int("resolved")
	created, _ := r.Time("timestamp")
	a := Alert{
		ID:             id,
		Type:           AlertType(r.String("alert_type")),
		Severity:       Severity(r.String("severity")),
		Message:        r.String("message"),
		MetricValue:    metric,
		ThresholdValue: threshold,
		Resolved:       resolved != 0,
		CreatedAt:      created,
	}
	if t, ok := r.Time("resolved_at"); ok {
		a.ResolvedAt = &t
	}
	return a
}

// AlertEvent is the payload of an "alert" event
type AlertEvent struct {
	ID             int64     `json:"id"`
	Type           AlertType `json:"type"`
	Severity       Severity  `json:"severity"`
	Message        string    `json:"message"`
	MetricValue    float64   `json:"metricValue"`
	ThresholdValue float64   `json:"thresholdValue"`
	Timestamp      time.Time `json:"timestamp"`
}

// AlertFilter narrows alert listings and bulk resolution. Zero fields match everything.
type AlertFilter struct {
	Type     AlertType `form:"type" json:"alert_type"`
	Severity Severity  `form:"severity" json:"severity" validate:"omitempty,oneof=low medium high critical"`
	Resolved *bool     `form:"resolved" json:"resolved,omitempty"`
}

// AutoResolveRule resolves open alerts of Type once a newer row of Table
// has Column below Below.
type AutoResolveRule struct {
	Type   AlertType
	Table  string
	Column string
	Below  float64
}

// AlertTypeCount is one row of the per-type alert summary
type AlertTypeCount struct {
	Type      AlertType `json:"alert_type"`
	Severity  Severity  `json:"severity"`
	Count     int64     `json:"count"`
	Active    int64     `json:"active_count"`
	LastAlert time.Time `json:"last_alert"`
}

// Event builds the "alert" event for a candidate persisted under id
func (c AlertCandidate) Event(id int64, at time.Time) AlertEvent {
	return AlertEvent{
		ID:             id,
		Type:           c.Type,
		Severity:       c.Severity,
		Message:        c.Message,
		MetricValue:    c.MetricValue,
		ThresholdValue: c.ThresholdValue,
		Timestamp:      at,
	}
}
