package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"raspimon/internal/models"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// Sensors reads one category of host telemetry per method. Each method is
// independent of the others and reports ErrSensorUnavailable on failure.
type Sensors interface {
	CPU(ctx context.Context) (*models.CPUReading, error)
	Memory(ctx context.Context) (*models.MemoryReading, error)
	Disk(ctx context.Context) ([]models.DiskReading, error)
	Network(ctx context.Context) ([]models.NetworkReading, error)
	Processes(ctx context.Context) (*models.ProcessReading, error)
	GPU(ctx context.Context) (*models.GPUReading, error)
	System(ctx context.Context) (*models.SystemInfo, error)
}

// HostSensors reads the local machine through gopsutil, sysfs and vcgencmd
type HostSensors struct {
	log      *slog.Logger
	sysRoot  string
	vcgencmd string

	mu       sync.Mutex
	lastNet  map[string]netSample
	ignoreFS map[string]bool
}

type netSample struct {
	sent, recv uint64
	at         time.Time
}

func NewHostSensors(log *slog.Logger) *HostSensors {
	return &HostSensors{
		log:      log,
		sysRoot:  "/sys",
		vcgencmd: "vcgencmd",
		lastNet:  make(map[string]netSample),
		ignoreFS: map[string]bool{"squashfs": true},
	}
}

func unavailable(category string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrSensorUnavailable, category, err)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func ptr[T any](v T) *T { return &v }

// CPU returns usage, frequency, temperature and load averages
func (s *HostSensors) CPU(ctx context.Context) (*models.CPUReading, error) {
	percentage, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, unavailable("cpu", err)
	}
	if len(percentage) == 0 {
		return nil, unavailable("cpu", fmt.Errorf("no cpu usage reported"))
	}

	coreCount, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		s.log.Warn("could not get cpu core count", "error", err)
	}

	r := &models.CPUReading{
		UsagePercent: round2(percentage[0]),
		CPUCount:     coreCount,
		FreqCurrent:  s.readFreq("scaling_cur_freq"),
		FreqMin:      s.readFreq("cpuinfo_min_freq"),
		FreqMax:      s.readFreq("cpuinfo_max_freq"),
		TempCelsius:  s.cpuTemperature(ctx),
	}
	if r.FreqCurrent == nil {
		if info, err := cpu.InfoWithContext(ctx); err == nil && len(info) > 0 && info[0].Mhz > 0 {
			r.FreqCurrent = ptr(info[0].Mhz)
		}
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		r.LoadAvg1Min = ptr(avg.Load1)
		r.LoadAvg5Min = ptr(avg.Load5)
		r.LoadAvg15Min = ptr(avg.Load15)
	} else {
		s.log.Debug("load average unavailable", "error", err)
	}

	return r, nil
}

// System describes the host: name, OS, kernel and boot time
func (s *HostSensors) System(ctx context.Context) (*models.SystemInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, unavailable("system", err)
	}
	return &models.SystemInfo{
		Hostname:      info.Hostname,
		Platform:      info.OS,
		Arch:          info.KernelArch,
		Kernel:        info.KernelVersion,
		UptimeSeconds: int64(info.Uptime),
		BootTime:      time.Unix(int64(info.BootTime), 0).UTC(),
	}, nil
}

// readFreq reads a cpufreq value of cpu0 in kHz and returns MHz
func (s *HostSensors) readFreq(name string) *float64 {
	v, ok := s.readSysFloat(filepath.Join("devices/system/cpu/cpu0/cpufreq", name))
	if !ok {
		return nil
	}
	return ptr(v / 1000)
}

func (s *HostSensors) cpuTemperature(ctx context.Context) *float64 {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if err == nil || len(temps) > 0 {
		for _, prefix := range []string{"cpu_thermal", "coretemp", "k10temp", "soc_thermal", "cpu"} {
			for _, t := range temps {
				if strings.HasPrefix(t.SensorKey, prefix) && t.Temperature > 0 {
					return ptr(round2(t.Temperature))
				}
			}
		}
	}
	if v, ok := s.readSysFloat("class/thermal/thermal_zone0/temp"); ok {
		return ptr(round2(v / 1000))
	}
	return nil
}

// Memory returns RAM and swap usage
func (s *HostSensors) Memory(ctx context.Context) (*models.MemoryReading, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, unavailable("memory", err)
	}
	r := &models.MemoryReading{
		TotalBytes:     vm.Total,
		AvailableBytes: vm.Available,
		UsedBytes:      vm.Used,
		FreeBytes:      vm.Free,
	}
	if vm.Total > 0 {
		r.UsagePercent = round2(float64(vm.Used) / float64(vm.Total) * 100)
	}

	swap, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		s.log.Debug("swap unavailable", "error", err)
		return r, nil
	}
	r.SwapTotalBytes = swap.Total
	r.SwapUsedBytes = swap.Used
	r.SwapFreeBytes = swap.Free
	if swap.Total > 0 {
		r.SwapUsagePercent = round2(float64(swap.Used) / float64(swap.Total) * 100)
	}
	return r, nil
}

// Disk returns one reading per mounted filesystem, skipping read-only
// images and filesystems with no space available
func (s *HostSensors) Disk(ctx context.Context) ([]models.DiskReading, error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, unavailable("disk", err)
	}

	var readings []models.DiskReading
	seen := make(map[string]bool)
	for _, partition := range partitions {
		if s.ignoreFS[partition.Fstype] || seen[partition.Mountpoint] {
			continue
		}
		seen[partition.Mountpoint] = true

		usage, err := disk.UsageWithContext(ctx, partition.Mountpoint)
		if err != nil {
			s.log.Warn("could not get disk usage", "mount", partition.Mountpoint, "error", err)
			continue
		}
		if usage.Free == 0 {
			continue
		}

		d := models.DiskReading{
			Filesystem:     partition.Device,
			MountPoint:     partition.Mountpoint,
			TotalBytes:     usage.Total,
			UsedBytes:      usage.Used,
			AvailableBytes: usage.Free,
			UsagePercent:   round2(usage.UsedPercent),
		}
		if usage.InodesTotal > 0 {
			d.InodesTotal = ptr(int64(usage.InodesTotal))
			d.InodesUsed = ptr(int64(usage.InodesUsed))
			d.InodesFree = ptr(int64(usage.InodesFree))
		}
		readings = append(readings, d)
	}
	return readings, nil
}

// Network returns counters per interface plus byte rates since the previous call
func (s *HostSensors) Network(ctx context.Context) ([]models.NetworkReading, error) {
	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, unavailable("network", err)
	}

	mtus := make(map[string]int)
	if ifaces, err := net.InterfacesWithContext(ctx); err == nil {
		for _, i := range ifaces {
			mtus[i.Name] = i.MTU
		}
	}

	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	readings := make([]models.NetworkReading, 0, len(counters))
	for _, counter := range counters {
		r := models.NetworkReading{
			Interface:   counter.Name,
			BytesSent:   counter.BytesSent,
			BytesRecv:   counter.BytesRecv,
			PacketsSent: counter.PacketsSent,
			PacketsRecv: counter.PacketsRecv,
			ErrorsIn:    counter.Errin,
			ErrorsOut:   counter.Errout,
			DropsIn:     counter.Dropin,
			DropsOut:    counter.Dropout,
		}
		if mtu, ok := mtus[counter.Name]; ok && mtu > 0 {
			r.MTU = ptr(int64(mtu))
		}
		if speed, ok := s.readSysFloat(filepath.Join("class/net", counter.Name, "speed")); ok && speed > 0 {
			r.SpeedMbps = ptr(int64(speed))
		}
		if duplex, ok := s.readSysString(filepath.Join("class/net", counter.Name, "duplex")); ok && duplex != "unknown" {
			r.Duplex = ptr(duplex)
		}

		if prev, ok := s.lastNet[counter.Name]; ok {
			r.BytesSentRate = rate(prev.sent, counter.BytesSent, now.Sub(prev.at))
			r.BytesRecvRate = rate(prev.recv, counter.BytesRecv, now.Sub(prev.at))
		}
		s.lastNet[counter.Name] = netSample{sent: counter.BytesSent, recv: counter.BytesRecv, at: now}
		readings = append(readings, r)
	}
	return readings, nil
}

// rate is bytes per second between two counter values, zero on counter reset
func rate(prev, cur uint64, elapsed time.Duration) float64 {
	if cur < prev {
		return 0
	}
	secs := elapsed.Seconds()
	if secs <= 0 {
		secs = 1
	}
	return round2(float64(cur-prev) / secs)
}

var (
	gpuTempPattern = regexp.MustCompile(`temp=(\d+\.\d+)'C`)
	gpuMemPattern  = regexp.MustCompile(`gpu=(\d+)M`)
)

// GPU returns GPU temperature, memory split and fan state. It reports
// ErrSensorUnavailable when no source yields anything.
func (s *HostSensors) GPU(ctx context.Context) (*models.GPUReading, error) {
	var r models.GPUReading

	if out, err := s.runVcgencmd(ctx, "measure_temp"); err == nil {
		if m := gpuTempPattern.FindStringSubmatch(out); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				r.TempCelsius = ptr(v)
			}
		}
	}
	if out, err := s.runVcgencmd(ctx, "get_mem", "gpu"); err == nil {
		if m := gpuMemPattern.FindStringSubmatch(out); m != nil {
			if mb, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				r.MemoryTotalBytes = ptr(mb * 1024 * 1024)
			}
		}
	}

	if r.TempCelsius == nil || r.UsagePercent == nil {
		s.readDRM(&r)
	}

	if level, ok := s.readSysFloat("class/thermal/cooling_device0/cur_state"); ok {
		fan := models.FanStatusForLevel(int(level))
		r.Fan = &fan
	}

	if r.Empty() {
		return nil, unavailable("gpu", fmt.Errorf("no gpu source"))
	}
	return &r, nil
}

func (s *HostSensors) runVcgencmd(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, s.vcgencmd, args...).Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// readDRM fills temperature and busy percent from the first DRM card exposing them
func (s *HostSensors) readDRM(r *models.GPUReading) {
	cards, err := filepath.Glob(filepath.Join(s.sysRoot, "class/drm/card[0-9]*"))
	if err != nil {
		return
	}
	for _, card := range cards {
		rel, _ := filepath.Rel(s.sysRoot, card)
		if r.UsagePercent == nil {
			if v, ok := s.readSysFloat(filepath.Join(rel, "device/gpu_busy_percent")); ok {
				r.UsagePercent = ptr(v)
			}
		}
		if r.TempCelsius == nil {
			hwmons, _ := filepath.Glob(filepath.Join(card, "device/hwmon/hwmon*/temp1_input"))
			for _, h := range hwmons {
				hrel, _ := filepath.Rel(s.sysRoot, h)
				if v, ok := s.readSysFloat(hrel); ok {
					r.TempCelsius = ptr(round2(v / 1000))
					break
				}
			}
		}
	}
}

func (s *HostSensors) readSysString(rel string) (string, bool) {
	b, err := os.ReadFile(filepath.Join(s.sysRoot, rel))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(b)), true
}

func (s *HostSensors) readSysFloat(rel string) (float64, bool) {
	str, ok := s.readSysString(rel)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
