package models

// Thresholds holds the live alert limits
type Thresholds struct {
	CPU         float64 `json:"cpu" yaml:"cpu"`
	Memory      float64 `json:"memory" yaml:"memory"`
	Disk        float64 `json:"disk" yaml:"disk"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	Load        float64 `json:"load" yaml:"load"`
}

// DefaultThresholds returns the stock limits
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPU:         80,
		Memory:      85,
		Disk:        90,
		Temperature: 75,
		Load:        5.0,
	}
}

// ThresholdUpdate is a partial threshold change; nil fields keep their current value
type ThresholdUpdate struct {
	CPU         *float64 `json:"cpu" validate:"omitempty,gt=0,lte=100"`
	Memory      *float64 `json:"memory" validate:"omitempty,gt=0,lte=100"`
	Disk        *float64 `json:"disk" validate:"omitempty,gt=0,lte=100"`
	Temperature *float64 `json:"temperature" validate:"omitempty,gt=0"`
	Load        *float64 `json:"load" validate:"omitempty,gt=0"`
}

// Merge applies the non-nil fields of u on top of t
func (t Thresholds) Merge(u ThresholdUpdate) Thresholds {
	if u.CPU != nil {
		t.CPU = *u.CPU
	}
	if u.Memory != nil {
		t.Memory = *u.Memory
	}
	if u.Disk != nil {
		t.Disk = *u.Disk
	}
	if u.Temperature != nil {
		t.Temperature = *u.Temperature
	}
	if u.Load != nil {
		t.Load = *u.Load
	}
	return t
}
