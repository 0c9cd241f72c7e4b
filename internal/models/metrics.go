package models

import (
	"encoding/json"
	"time"
)

// Category identifies one family of host telemetry
type Category string

const (
	CategoryCPU     Category = "cpu"
	CategoryMemory  Category = "memory"
	CategoryDisk    Category = "disk"
	CategoryNetwork Category = "network"
	CategoryProcess Category = "process"
	CategoryGPU     Category = "gpu"
)

// Categories lists every sampled category in collection order
var Categories = []Category{
	CategoryCPU,
	CategoryMemory,
	CategoryDisk,
	CategoryNetwork,
	CategoryProcess,
	CategoryGPU,
}

// Table returns the storage table holding readings of this category
func (c Category) Table() string {
	return string(c) + "_metrics"
}

// ParseCategory accepts a category name or the plural "processes" used by the event payload
func ParseCategory(s string) (Category, bool) {
	if s == "processes" {
		return CategoryProcess, true
	}
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// MetricsSnapshot is the payload of one "metrics" event: every category sampled in a tick.
// A category whose adapter failed is left nil/empty and omitted from JSON.
type MetricsSnapshot struct {
	CPU       *CPUReading      `json:"cpu,omitempty"`
	Memory    *MemoryReading   `json:"memory,omitempty"`
	Disk      []DiskReading    `json:"disk,omitempty"`
	Network   []NetworkReading `json:"network,omitempty"`
	Processes *ProcessReading  `json:"processes,omitempty"`
	GPU       *GPUReading      `json:"gpu,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Collected returns the categories that produced data in this snapshot
func (s MetricsSnapshot) Collected() []Category {
	var out []Category
	if s.CPU != nil {
		out = append(out, CategoryCPU)
	}
	if s.Memory != nil {
		out = append(out, CategoryMemory)
	}
	if len(s.Disk) > 0 {
		out = append(out, CategoryDisk)
	}
	if len(s.Network) > 0 {
		out = append(out, CategoryNetwork)
	}
	if s.Processes != nil {
		out = append(out, CategoryProcess)
	}
	if s.GPU != nil {
		out = append(out, CategoryGPU)
	}
	return out
}

// Records flattens the snapshot into storage rows grouped by category.
// Disk and network may contribute several rows; absent categories contribute none.
func (s MetricsSnapshot) Records() map[Category][]Record {
	out := make(map[Category][]Record, len(Categories))
	if s.CPU != nil {
		out[CategoryCPU] = []Record{s.CPU.Record()}
	}
	if s.Memory != nil {
		out[CategoryMemory] = []Record{s.Memory.Record()}
	}
	for _, d := range s.Disk {
		out[CategoryDisk] = append(out[CategoryDisk], d.Record())
	}
	for _, n := range s.Network {
		out[CategoryNetwork] = append(out[CategoryNetwork], n.Record())
	}
	if s.Processes != nil {
		out[CategoryProcess] = []Record{s.Processes.Record()}
	}
	if s.GPU != nil {
		out[CategoryGPU] = []Record{s.GPU.Record()}
	}
	return out
}

// Record is a flat column/value row as written to or read back from storage
type Record map[string]any

// Float reads a numeric column; ok is false for NULL or missing values
func (r Record) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Int reads an integer column; ok is false for NULL or missing values
func (r Record) Int(key string) (int64, bool) {
	switch v := r[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// String reads a text column, returning "" for NULL
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return ""
	}
}

// Time reads a timestamp column
func (r Record) Time(key string) (time.Time, bool) {
	switch v := r[key].(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// nullable maps a nil pointer to a SQL NULL
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func int64Ptr(r Record, key string) *int64 {
	if v, ok := r.Int(key); ok {
		return &v
	}
	return nil
}
