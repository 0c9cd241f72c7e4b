package services

import (
	"context"
	"sort"

	"raspimon/internal/models"

	"github.com/shirou/gopsutil/v3/process"
)

const topProcessCount = 10

type processUsage struct {
	cpu   float64
	mem   float64
	score float64
}

// Processes counts processes by state and sums the usage of the busiest ones.
// Pipeline: Collect → Enrich → Sort → Limit
func (s *HostSensors) Processes(ctx context.Context) (*models.ProcessReading, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, unavailable("process", err)
	}

	r := &models.ProcessReading{}
	usages := make([]processUsage, 0, len(procs))
	seen := make(map[int32]bool, len(procs))

	// COLLECT
	for _, p := range procs {
		if seen[p.Pid] {
			continue
		}
		seen[p.Pid] = true

		status, err := p.StatusWithContext(ctx)
		if err != nil {
			// process exited between listing and inspection
			continue
		}
		r.Total++
		switch mapProcessState(status) {
		case "running":
			r.Running++
		case "sleeping":
			r.Sleeping++
		case "zombie":
			r.Zombie++
			continue
		}

		cpuPercent, err := p.CPUPercentWithContext(ctx)
		if err != nil {
			cpuPercent = 0
		}
		memPercent, err := p.MemoryPercentWithContext(ctx)
		if err != nil {
			memPercent = 0
		}
		usages = append(usages, processUsage{cpu: cpuPercent, mem: float64(memPercent)})
	}

	// ENRICH + SORT + LIMIT
	for i := range usages {
		usages[i].score = usages[i].cpu + usages[i].mem
	}
	sort.Slice(usages, func(i, j int) bool {
		return usages[i].score > usages[j].score
	})
	if len(usages) > topProcessCount {
		usages = usages[:topProcessCount]
	}
	for _, u := range usages {
		r.CPUUsagePercent += u.cpu
		r.MemoryUsagePercent += u.mem
	}
	r.CPUUsagePercent = round2(r.CPUUsagePercent)
	r.MemoryUsagePercent = round2(r.MemoryUsagePercent)
	return r, nil
}

// mapProcessState folds gopsutil states into the counted buckets
func mapProcessState(status []string) string {
	if len(status) == 0 {
		return "unknown"
	}
	switch status[0] {
	case process.Running:
		return "running"
	case process.Sleep, process.Idle, process.Wait:
		return "sleeping"
	case process.Zombie:
		return "zombie"
	case process.Stop:
		return "stopped"
	default:
		return status[0]
	}
}
