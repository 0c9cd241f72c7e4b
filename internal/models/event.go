package models

import (
	"encoding/json"
	"time"
)

// System event types written by the alert engine
const (
	EventAlertResolved      = "alert_resolved"
	EventAlertsBulkResolved = "alerts_bulk_resolved"
	EventAlertsAutoResolved = "alerts_auto_resolved"
)

// SystemEvent is an audit log entry
type SystemEvent struct {
	ID          int64           `json:"id"`
	EventType   string          `json:"event_type" binding:"required"`
	EventData   json.RawMessage `json:"event_data,omitempty"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Record returns the system_events row for this event
func (e SystemEvent) Record() Record {
	var data any
	if len(e.EventData) > 0 {
		data = string(e.EventData)
	}
	return Record{
		"event_type":  e.EventType,
		"event_data":  data,
		"description": e.Description,
	}
}

// SystemEventFromRecord converts a stored system_events row
func SystemEventFromRecord(r Record) SystemEvent {
	id, _ := r.Int("id")
	ts, _ := r.Time("timestamp")
	e := SystemEvent{
		ID:          id,
		EventType:   r.String("event_type"),
		Description: r.String("description"),
		Timestamp:   ts,
	}
	if data := r.String("event_data"); data != "" && json.Valid([]byte(data)) {
		e.EventData = json.RawMessage(data)
	}
	return e
}
