package models

// CPUReading represents one CPU sample. Frequency, temperature and load
// fields are nil on hardware that does not expose them.
type CPUReading struct {
	UsagePercent float64  `json:"usage_percent"`
	CPUCount     int      `json:"cpu_count"`
	FreqCurrent  *float64 `json:"cpu_freq_current"`
	FreqMin      *float64 `json:"cpu_freq_min"`
	FreqMax      *float64 `json:"cpu_freq_max"`
	TempCelsius  *float64 `json:"cpu_temp_celsius"`
	LoadAvg1Min  *float64 `json:"load_avg_1min"`
	LoadAvg5Min  *float64 `json:"load_avg_5min"`
	LoadAvg15Min *float64 `json:"load_avg_15min"`
}

// Record returns the cpu_metrics row for this reading
func (c CPUReading) Record() Record {
	return Record{
		"cpu_usage_percent": c.UsagePercent,
		"cpu_count":         int64(c.CPUCount),
		"cpu_freq_current":  nullable(c.FreqCurrent),
		"cpu_freq_min":      nullable(c.FreqMin),
		"cpu_freq_max":      nullable(c.FreqMax),
		"cpu_temp_celsius":  nullable(c.TempCelsius),
		"load_avg_1min":     nullable(c.LoadAvg1Min),
		"load_avg_5min":     nullable(c.LoadAvg5Min),
		"load_avg_15min":    nullable(c.LoadAvg15Min),
	}
}
