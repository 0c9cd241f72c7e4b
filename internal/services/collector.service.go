package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"raspimon/internal/db"
	"raspimon/internal/models"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultMetricsInterval = 5 * time.Second
	DefaultCleanupInterval = 24 * time.Hour
	DefaultRetentionDays   = 30
)

// Sink is the persistence contract the collector writes through
type Sink interface {
	Insert(ctx context.Context, table string, rec models.Record) (int64, error)
	DeleteOlderThan(ctx context.Context, table string, days int) (int64, error)
}

// Publisher emits events without blocking the caller
type Publisher interface {
	Publish(topic Topic, payload any)
}

type CollectorConfig struct {
	Interval        time.Duration
	CleanupInterval time.Duration
	RetentionDays   int
}

func (c CollectorConfig) withDefaults() CollectorConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultMetricsInterval
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = DefaultRetentionDays
	}
	return c
}

// Collector samples every sensor category on a fixed cadence, persists the
// readings and publishes one "metrics" event per tick
type Collector struct {
	sensors Sensors
	sink    Sink
	pub     Publisher
	log     *slog.Logger
	now     func() time.Time
	tables  []string

	mu       sync.Mutex
	running  bool
	runCtx   context.Context
	sampling *RepeatingTask
	cleanup  *RepeatingTask
}

func NewCollector(sensors Sensors, sink Sink, pub Publisher, log *slog.Logger) *Collector {
	return &Collector{
		sensors: sensors,
		sink:    sink,
		pub:     pub,
		log:     log,
		now:     time.Now,
		tables:  db.Tables,
	}
}

// Start performs one collection synchronously, then arms the sampling and
// cleanup schedules. Calling it while running only logs a warning.
func (c *Collector) Start(ctx context.Context, cfg CollectorConfig) bool {
	cfg = cfg.withDefaults()

	c.mu.Lock()
	if c.active() {
		c.mu.Unlock()
		c.log.Warn("metrics collection already running")
		return false
	}
	c.running = true
	c.runCtx = ctx
	c.sampling = NewRepeatingTask("sampling", cfg.Interval, func(ctx context.Context) {
		c.Collect(ctx)
	}, c.log)
	c.cleanup = NewRepeatingTask("cleanup", cfg.CleanupInterval, func(ctx context.Context) {
		c.Cleanup(ctx, cfg.RetentionDays)
	}, c.log)
	sampling, cleanup := c.sampling, c.cleanup
	c.mu.Unlock()

	c.log.Info("starting metrics collection",
		"interval", cfg.Interval, "cleanup_interval", cfg.CleanupInterval, "retention_days", cfg.RetentionDays)

	c.RecordSystemInfo(ctx)
	c.Collect(ctx)

	sampling.Start(ctx)
	cleanup.Start(ctx)
	return true
}

// Stop disarms both schedules. An in-flight tick is left to finish.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	c.sampling.Stop()
	c.cleanup.Stop()
	c.log.Info("metrics collection stopped")
}

func (c *Collector) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active()
}

// active reports whether the last Start is still live; the schedules end on
// their own when the context passed to Start is cancelled. c.mu must be held.
func (c *Collector) active() bool {
	return c.running && c.runCtx.Err() == nil
}

// Wait blocks until the schedule goroutines of the last Start have exited
func (c *Collector) Wait() {
	c.mu.Lock()
	sampling, cleanup := c.sampling, c.cleanup
	c.mu.Unlock()
	if sampling != nil {
		<-sampling.Done()
	}
	if cleanup != nil {
		<-cleanup.Done()
	}
}

// RecordSystemInfo stores the host description. Failures are logged and
// never stop collection.
func (c *Collector) RecordSystemInfo(ctx context.Context) {
	info, err := c.sensors.System(ctx)
	if err != nil {
		c.log.Warn("system info unavailable", "error", err)
		return
	}
	if _, err := c.sink.Insert(ctx, "system_info", info.Record()); err != nil {
		c.log.Error("failed to store system info", "error", fmt.Errorf("%w: %v", ErrStorageWrite, err))
		return
	}
	c.log.Info("system info recorded", "hostname", info.Hostname, "kernel", info.Kernel)
}

// Collect runs one sampling tick: all adapters concurrently, then persistence
// of whatever succeeded, then the "metrics" event
func (c *Collector) Collect(ctx context.Context) models.MetricsSnapshot {
	var snap models.MetricsSnapshot
	var g errgroup.Group

	g.Go(func() error {
		snap.CPU = readOne(c, "cpu", func() (*models.CPUReading, error) { return c.sensors.CPU(ctx) })
		return nil
	})
	g.Go(func() error {
		snap.Memory = readOne(c, "memory", func() (*models.MemoryReading, error) { return c.sensors.Memory(ctx) })
		return nil
	})
	g.Go(func() error {
		snap.Disk = readOne(c, "disk", func() ([]models.DiskReading, error) { return c.sensors.Disk(ctx) })
		return nil
	})
	g.Go(func() error {
		snap.Network = readOne(c, "network", func() ([]models.NetworkReading, error) { return c.sensors.Network(ctx) })
		return nil
	})
	g.Go(func() error {
		snap.Processes = readOne(c, "process", func() (*models.ProcessReading, error) { return c.sensors.Processes(ctx) })
		return nil
	})
	g.Go(func() error {
		snap.GPU = readOne(c, "gpu", func() (*models.GPUReading, error) { return c.sensors.GPU(ctx) })
		return nil
	})
	_ = g.Wait()

	snap.Timestamp = c.now().UTC()
	c.persist(ctx, snap)

	c.pub.Publish(TopicMetrics, snap)
	return snap
}

// readOne calls one adapter, converting errors and panics into a zero result
func readOne[T any](c *Collector, category string, read func() (T, error)) (out T) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("sensor adapter panicked", "category", category, "panic", r)
			var zero T
			out = zero
		}
	}()
	v, err := read()
	if err != nil {
		c.log.Warn("sensor read failed", "category", category, "error", err)
		var zero T
		return zero
	}
	return v
}

func (c *Collector) persist(ctx context.Context, snap models.MetricsSnapshot) {
	var g errgroup.Group
	for category, recs := range snap.Records() {
		category, recs := category, recs
		g.Go(func() error {
			for _, rec := range recs {
				if _, err := c.sink.Insert(ctx, category.Table(), rec); err != nil {
					c.log.Error("failed to store metrics", "category", category,
						"error", fmt.Errorf("%w: %v", ErrStorageWrite, err))
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Cleanup deletes rows older than retentionDays from every table. A failure
// on one table does not stop the others. It returns the deleted count per table.
func (c *Collector) Cleanup(ctx context.Context, retentionDays int) map[string]int64 {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	c.log.Info("cleaning up old metrics", "retention_days", retentionDays)

	deleted := make(map[string]int64, len(c.tables))
	for _, table := range c.tables {
		n, err := c.sink.DeleteOlderThan(ctx, table, retentionDays)
		if err != nil {
			c.log.Error("cleanup failed", "table", table, "error", fmt.Errorf("%w: %v", ErrStorageWrite, err))
			continue
		}
		deleted[table] = n
		c.log.Info("cleaned up old records", "table", table, "deleted", n)
	}
	return deleted
}
