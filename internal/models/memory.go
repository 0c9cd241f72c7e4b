package models

// MemoryReading represents RAM and swap usage
type MemoryReading struct {
	TotalBytes       uint64  `json:"total_bytes"`
	AvailableBytes   uint64  `json:"available_bytes"`
	UsedBytes        uint64  `json:"used_bytes"`
	FreeBytes        uint64  `json:"free_bytes"`
	UsagePercent     float64 `json:"usage_percent"`
	SwapTotalBytes   uint64  `json:"swap_total_bytes"`
	SwapUsedBytes    uint64  `json:"swap_used_bytes"`
	SwapFreeBytes    uint64  `json:"swap_free_bytes"`
	SwapUsagePercent float64 `json:"swap_usage_percent"`
}

// Record returns the memory_metrics row for this reading
func (m MemoryReading) Record() Record {
	return Record{
		"total_bytes":        int64(m.TotalBytes),
		"available_bytes":    int64(m.AvailableBytes),
		"used_bytes":         int64(m.UsedBytes),
		"free_bytes":         int64(m.FreeBytes),
		"usage_percent":      m.UsagePercent,
		"swap_total_bytes":   int64(m.SwapTotalBytes),
		"swap_used_bytes":    int64(m.SwapUsedBytes),
		"swap_free_bytes":    int64(m.SwapFreeBytes),
		"swap_usage_percent": m.SwapUsagePercent,
	}
}
