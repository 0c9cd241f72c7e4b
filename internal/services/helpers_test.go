package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"raspimon/internal/db"
	"raspimon/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, clock *testClock) *db.Store {
	t.Helper()
	sqldb, err := db.Open(t.TempDir()+"/test.db", 4)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = sqldb.Close() })
	if err := db.Migrate(sqldb); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	store := db.NewStore(sqldb)
	if clock != nil {
		store.WithClock(clock.now)
	}
	return store
}

// recorder is a Publisher that keeps every event
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(topic Topic, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Topic: topic, Payload: payload, At: time.Now()})
}

func (r *recorder) byTopic(topic Topic) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Topic == topic {
			out = append(out, ev)
		}
	}
	return out
}

var errFakeSensor = errors.New("fake sensor failure")

// fakeSensors returns fixed readings; categories listed in fail return an error
type fakeSensors struct {
	mu      sync.Mutex
	cpu     models.CPUReading
	fail    map[models.Category]bool
	panicOn models.Category
	calls   int
}

func newFakeSensors() *fakeSensors {
	temp := 48.5
	load := 0.7
	return &fakeSensors{
		cpu:  models.CPUReading{UsagePercent: 12.5, CPUCount: 4, TempCelsius: &temp, LoadAvg15Min: &load},
		fail: map[models.Category]bool{},
	}
}

func (f *fakeSensors) check(c models.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c == models.CategoryCPU {
		f.calls++
	}
	if f.panicOn == c {
		panic("sensor exploded")
	}
	if f.fail[c] {
		return errFakeSensor
	}
	return nil
}

func (f *fakeSensors) setCPU(r models.CPUReading) {
	f.mu.Lock()
	f.cpu = r
	f.mu.Unlock()
}

func (f *fakeSensors) CPU(context.Context) (*models.CPUReading, error) {
	if err := f.check(models.CategoryCPU); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.cpu
	return &r, nil
}

func (f *fakeSensors) Memory(context.Context) (*models.MemoryReading, error) {
	if err := f.check(models.CategoryMemory); err != nil {
		return nil, err
	}
	return &models.MemoryReading{TotalBytes: 4 << 30, UsedBytes: 1 << 30, UsagePercent: 25}, nil
}

func (f *fakeSensors) Disk(context.Context) ([]models.DiskReading, error) {
	if err := f.check(models.CategoryDisk); err != nil {
		return nil, err
	}
	return []models.DiskReading{
		{Filesystem: "/dev/root", MountPoint: "/", TotalBytes: 100, UsedBytes: 40, AvailableBytes: 60, UsagePercent: 40},
		{Filesystem: "/dev/sda1", MountPoint: "/mnt/data", TotalBytes: 100, UsedBytes: 10, AvailableBytes: 90, UsagePercent: 10},
	}, nil
}

func (f *fakeSensors) Network(context.Context) ([]models.NetworkReading, error) {
	if err := f.check(models.CategoryNetwork); err != nil {
		return nil, err
	}
	return []models.NetworkReading{{Interface: "eth0", BytesSent: 1000, BytesRecv: 2000}}, nil
}

func (f *fakeSensors) Processes(context.Context) (*models.ProcessReading, error) {
	if err := f.check(models.CategoryProcess); err != nil {
		return nil, err
	}
	return &models.ProcessReading{Running: 2, Sleeping: 100, Total: 102}, nil
}

func (f *fakeSensors) GPU(context.Context) (*models.GPUReading, error) {
	if err := f.check(models.CategoryGPU); err != nil {
		return nil, err
	}
	temp := 45.0
	return &models.GPUReading{TempCelsius: &temp}, nil
}

func (f *fakeSensors) System(context.Context) (*models.SystemInfo, error) {
	if err := f.check(categorySystem); err != nil {
		return nil, err
	}
	return &models.SystemInfo{
		Hostname: "raspberrypi", Platform: "linux", Arch: "aarch64", Kernel: "6.6.31-v8+",
		UptimeSeconds: 3600, BootTime: time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC),
	}, nil
}

// categorySystem keys System failures in fakeSensors.fail
const categorySystem models.Category = "system"

func (f *fakeSensors) cpuCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func rowCount(t *testing.T, store *db.Store, table string) int {
	t.Helper()
	var n int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
