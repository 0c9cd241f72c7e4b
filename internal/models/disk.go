package models

// DiskReading represents usage of one mounted filesystem
type DiskReading struct {
	Filesystem     string  `json:"filesystem"`
	MountPoint     string  `json:"mount_point"`
	TotalBytes     uint64  `json:"total_bytes"`
	UsedBytes      uint64  `json:"used_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	UsagePercent   float64 `json:"usage_percent"`
	InodesTotal    *int64  `json:"inodes_total"`
	InodesUsed     *int64  `json:"inodes_used"`
	InodesFree     *int64  `json:"inodes_free"`
}

// Record returns the disk_metrics row for this reading
func (d DiskReading) Record() Record {
	return Record{
		"filesystem":      d.Filesystem,
		"mount_point":     d.MountPoint,
		"total_bytes":     int64(d.TotalBytes),
		"used_bytes":      int64(d.UsedBytes),
		"available_bytes": int64(d.AvailableBytes),
		"usage_percent":   d.UsagePercent,
		"inodes_total":    nullable(d.InodesTotal),
		"inodes_used":     nullable(d.InodesUsed),
		"inodes_free":     nullable(d.InodesFree),
	}
}

// DiskReadingFromRecord rebuilds a reading from a stored disk_metrics row
func DiskReadingFromRecord(r Record) DiskReading {
	total, _ := r.Int("total_bytes")
	used, _ := r.Int("used_bytes")
	avail, _ := r.Int("available_bytes")
	usage, _ := r.Float("usage_percent")
	return DiskReading{
		Filesystem:     r.String("filesystem"),
		MountPoint:     r.String("mount_point"),
		TotalBytes:     uint64(total),
		UsedBytes:      uint64(used),
		AvailableBytes: uint64(avail),
		UsagePercent:   usage,
		InodesTotal:    int64Ptr(r, "inodes_total"),
		InodesUsed:     int64Ptr(r, "inodes_used"),
		InodesFree:     int64Ptr(r, "inodes_free"),
	}
}
