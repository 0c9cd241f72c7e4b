package models

// FanStatus reports the cooling device state
type FanStatus struct {
	Level       int    `json:"level"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

var fanStates = []FanStatus{
	{Level: 0, Status: "Off", Description: "Fan is off"},
	{Level: 1, Status: "Low", Description: "Fan running at low speed"},
	{Level: 2, Status: "Medium", Description: "Fan running at medium speed"},
	{Level: 3, Status: "High", Description: "Fan running at high speed"},
	{Level: 4, Status: "Max", Description: "Fan running at maximum speed"},
}

// FanStatusForLevel maps a cooling_device cur_state value to a status
func FanStatusForLevel(level int) FanStatus {
	if level >= 0 && level < len(fanStates) {
		return fanStates[level]
	}
	return FanStatus{Level: level, Status: "Unknown", Description: "Unknown fan state"}
}

// GPUReading represents GPU and thermal state. Every field is optional;
// the adapter reports no reading at all when none of them could be read.
type GPUReading struct {
	TempCelsius      *float64   `json:"gpu_temp_celsius"`
	MemoryUsedBytes  *int64     `json:"gpu_memory_used_bytes"`
	MemoryTotalBytes *int64     `json:"gpu_memory_total_bytes"`
	UsagePercent     *float64   `json:"gpu_usage_percent"`
	Fan              *FanStatus `json:"fan_status,omitempty"`
}

// Empty reports whether no field was populated
func (g GPUReading) Empty() bool {
	return g.TempCelsius == nil && g.MemoryUsedBytes == nil && g.MemoryTotalBytes == nil &&
		g.UsagePercent == nil && g.Fan == nil
}

// Record returns the gpu_metrics row for this reading
func (g GPUReading) Record() Record {
	var fan any
	if g.Fan != nil {
		fan = int64(g.Fan.Level)
	}
	return Record{
		"gpu_temp_celsius":       nullable(g.TempCelsius),
		"gpu_memory_used_bytes":  nullable(g.MemoryUsedBytes),
		"gpu_memory_total_bytes": nullable(g.MemoryTotalBytes),
		"gpu_usage_percent":      nullable(g.UsagePercent),
		"fan_level":              fan,
	}
}
