package models

// ProcessReading summarises the process table.
// CPU and memory percentages are summed over the ten busiest processes.
type ProcessReading struct {
	Running            int     `json:"running_processes"`
	Sleeping           int     `json:"sleeping_processes"`
	Zombie             int     `json:"zombie_processes"`
	Total              int     `json:"total_processes"`
	CPUUsagePercent    float64 `json:"cpu_usage_percent"`
	MemoryUsagePercent float64 `json:"memory_usage_percent"`
}

// Record returns the process_metrics row for this reading
func (p ProcessReading) Record() Record {
	return Record{
		"running_processes":    int64(p.Running),
		"sleeping_processes":   int64(p.Sleeping),
		"zombie_processes":     int64(p.Zombie),
		"total_processes":      int64(p.Total),
		"cpu_usage_percent":    p.CPUUsagePercent,
		"memory_usage_percent": p.MemoryUsagePercent,
	}
}
