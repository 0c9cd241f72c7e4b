package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"raspimon/internal/models"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultAlertCheckInterval = 30 * time.Second
	DefaultAlertCooldown      = 10 * time.Minute

	swapThreshold     = 50
	zombieLimit       = 5
	processCountLimit = 500

	recentWindow     = 5 * time.Minute
	autoResolveRatio = 0.8
	defaultResolver  = "system"
)

// AlertStore is the persistence contract of the alert engine
type AlertStore interface {
	QueryLatest(ctx context.Context, table string, limit int) ([]models.Record, error)
	QueryRange(ctx context.Context, table string, start, end time.Time, limit int) ([]models.Record, error)
	InsertAlert(ctx context.Context, c models.AlertCandidate) (int64, time.Time, error)
	ResolveAlert(ctx context.Context, id int64) (bool, error)
	ResolveAlerts(ctx context.Context, filter models.AlertFilter) (int64, error)
	AutoResolveAlerts(ctx context.Context, rule models.AutoResolveRule, since time.Time) (int64, error)
	InsertEvent(ctx context.Context, e models.SystemEvent) (int64, error)
}

type AlertEngineConfig struct {
	Thresholds models.Thresholds
	Cooldown   time.Duration
}

// AlertEngine evaluates the latest readings against thresholds and is the
// only writer of alerts
type AlertEngine struct {
	store    AlertStore
	pub      Publisher
	log      *slog.Logger
	now      func() time.Time
	cooldown time.Duration
	validate *validator.Validate

	mu          sync.Mutex
	thresholds  models.Thresholds
	lastCreated map[models.AlertKey]time.Time

	taskMu sync.Mutex
	task   *RepeatingTask
}

func NewAlertEngine(store AlertStore, pub Publisher, log *slog.Logger, cfg AlertEngineConfig) *AlertEngine {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultAlertCooldown
	}
	if cfg.Thresholds == (models.Thresholds{}) {
		cfg.Thresholds = models.DefaultThresholds()
	}
	return &AlertEngine{
		store:       store,
		pub:         pub,
		log:         log,
		now:         time.Now,
		cooldown:    cfg.Cooldown,
		validate:    validator.New(),
		thresholds:  cfg.Thresholds,
		lastCreated: make(map[models.AlertKey]time.Time),
	}
}

// WithClock replaces the clock used for cooldowns and rule windows
func (e *AlertEngine) WithClock(now func() time.Time) *AlertEngine {
	e.now = now
	return e
}

// Start arms the periodic check. Calling it while running only logs a warning.
func (e *AlertEngine) Start(ctx context.Context, interval time.Duration) bool {
	if interval <= 0 {
		interval = DefaultAlertCheckInterval
	}
	e.taskMu.Lock()
	defer e.taskMu.Unlock()
	if e.task != nil && e.task.Running() {
		e.log.Warn("alert monitoring already running")
		return false
	}
	e.task = NewRepeatingTask("alert-check", interval, func(ctx context.Context) {
		e.Check(ctx)
	}, e.log)
	e.task.Start(ctx)
	e.log.Info("starting alert monitoring", "interval", interval)
	return true
}

func (e *AlertEngine) Stop() {
	e.taskMu.Lock()
	defer e.taskMu.Unlock()
	if e.task != nil && e.task.Stop() {
		e.log.Info("alert monitoring stopped")
	}
}

func (e *AlertEngine) Running() bool {
	e.taskMu.Lock()
	defer e.taskMu.Unlock()
	return e.task != nil && e.task.Running()
}

// Thresholds returns a copy of the live thresholds
func (e *AlertEngine) Thresholds() models.Thresholds {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.thresholds
}

// UpdateThresholds merges u into the live thresholds. The change applies from the next check.
func (e *AlertEngine) UpdateThresholds(u models.ThresholdUpdate) (models.Thresholds, error) {
	if err := e.validate.Struct(u); err != nil {
		return models.Thresholds{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	e.mu.Lock()
	e.thresholds = e.thresholds.Merge(u)
	t := e.thresholds
	e.mu.Unlock()
	e.log.Info("alert thresholds updated", "thresholds", t)
	return t, nil
}

type alertRule func(ctx context.Context, t models.Thresholds) []models.AlertCandidate

// Check runs every rule concurrently against the latest readings, creates
// the alerts that pass the cooldown filter, then sweeps for auto-resolution.
// It returns the events emitted by this check.
func (e *AlertEngine) Check(ctx context.Context) []models.AlertEvent {
	th := e.Thresholds()
	rules := []alertRule{e.checkCPU, e.checkMemory, e.checkDisk, e.checkGPU, e.checkLoad, e.checkProcesses}

	var mu sync.Mutex
	var events []models.AlertEvent
	var g errgroup.Group
	for _, rule := range rules {
		rule := rule
		g.Go(func() error {
			for _, c := range rule(ctx, th) {
				if ev, ok := e.CreateAlert(ctx, c); ok {
					mu.Lock()
					events = append(events, ev)
					mu.Unlock()
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	e.AutoResolveAlerts(ctx)
	return events
}

// CreateAlert persists c and emits an "alert" event unless an alert with the
// same key was created within the cooldown period
func (e *AlertEngine) CreateAlert(ctx context.Context, c models.AlertCandidate) (models.AlertEvent, bool) {
	key := c.Key()
	now := e.now()

	e.mu.Lock()
	prev, had := e.lastCreated[key]
	if had && now.Sub(prev) < e.cooldown {
		e.mu.Unlock()
		return models.AlertEvent{}, false
	}
	e.lastCreated[key] = now
	e.mu.Unlock()

	id, at, err := e.store.InsertAlert(ctx, c)
	if err != nil {
		e.mu.Lock()
		if e.lastCreated[key].Equal(now) {
			if had {
				e.lastCreated[key] = prev
			} else {
				delete(e.lastCreated, key)
			}
		}
		e.mu.Unlock()
		e.log.Error("failed to create alert", "type", c.Type, "error", fmt.Errorf("%w: %v", ErrStorageWrite, err))
		return models.AlertEvent{}, false
	}

	ev := c.Event(id, at)
	e.pub.Publish(TopicAlert, ev)
	e.log.Warn("alert created", "id", id, "type", c.Type, "severity", c.Severity, "message", c.Message)
	return ev, true
}

// ResolveAlert resolves an open alert and records who did it. It reports
// false without writing anything when the alert is missing or already resolved.
func (e *AlertEngine) ResolveAlert(ctx context.Context, id int64, resolvedBy string) (bool, error) {
	if resolvedBy == "" {
		resolvedBy = defaultResolver
	}
	ok, err := e.store.ResolveAlert(ctx, id)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	if !ok {
		return false, nil
	}
	e.log.Info("alert resolved", "id", id, "resolved_by", resolvedBy)
	e.audit(ctx, models.EventAlertResolved,
		map[string]any{"alert_id": id, "resolved_by": resolvedBy},
		fmt.Sprintf("Alert %d resolved by %s", id, resolvedBy))
	return true, nil
}

// ResolveAlerts resolves every open alert matching the type and/or severity of filter
func (e *AlertEngine) ResolveAlerts(ctx context.Context, filter models.AlertFilter, resolvedBy string) (int64, error) {
	if filter.Type == "" && filter.Severity == "" {
		return 0, fmt.Errorf("%w: either alert_type or severity must be specified", ErrConfiguration)
	}
	if filter.Severity != "" && !filter.Severity.Valid() {
		return 0, fmt.Errorf("%w: unknown severity %q", ErrConfiguration, filter.Severity)
	}
	if resolvedBy == "" {
		resolvedBy = defaultResolver
	}
	n, err := e.store.ResolveAlerts(ctx, models.AlertFilter{Type: filter.Type, Severity: filter.Severity})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	e.audit(ctx, models.EventAlertsBulkResolved,
		map[string]any{"alert_type": filter.Type, "severity": filter.Severity, "resolved_by": resolvedBy, "count": n},
		fmt.Sprintf("%d alerts resolved by %s", n, resolvedBy))
	return n, nil
}

// AutoResolveAlerts resolves CPU, temperature and memory alerts whose metric
// dropped below 80% of its threshold in the last five minutes
func (e *AlertEngine) AutoResolveAlerts(ctx context.Context) int64 {
	th := e.Thresholds()
	since := e.now().Add(-recentWindow)
	rules := []models.AutoResolveRule{
		{Type: models.AlertCPUUsageHigh, Table: models.CategoryCPU.Table(), Column: "cpu_usage_percent", Below: th.CPU * autoResolveRatio},
		{Type: models.AlertCPUTemperatureHigh, Table: models.CategoryCPU.Table(), Column: "cpu_temp_celsius", Below: th.Temperature * autoResolveRatio},
		{Type: models.AlertMemoryUsageHigh, Table: models.CategoryMemory.Table(), Column: "usage_percent", Below: th.Memory * autoResolveRatio},
	}

	var total int64
	for _, rule := range rules {
		n, err := e.store.AutoResolveAlerts(ctx, rule, since)
		if err != nil {
			e.log.Error("auto resolve failed", "type", rule.Type, "error", err)
			continue
		}
		total += n
	}
	if total > 0 {
		e.log.Info("alerts auto-resolved", "count", total)
		e.audit(ctx, models.EventAlertsAutoResolved, map[string]any{"count": total},
			fmt.Sprintf("%d alerts auto-resolved", total))
	}
	return total
}

func (e *AlertEngine) audit(ctx context.Context, eventType string, data map[string]any, description string) {
	raw, err := json.Marshal(data)
	if err != nil {
		e.log.Error("failed to encode audit data", "event_type", eventType, "error", err)
		return
	}
	if _, err := e.store.InsertEvent(ctx, models.SystemEvent{EventType: eventType, EventData: raw, Description: description}); err != nil {
		e.log.Error("failed to write audit event", "event_type", eventType, "error", fmt.Errorf("%w: %v", ErrStorageWrite, err))
	}
}

// SeverityFor grades value against threshold by their ratio
func SeverityFor(value, threshold float64) models.Severity {
	if threshold <= 0 {
		return models.SeverityCritical
	}
	ratio := value / threshold
	switch {
	case ratio >= 1.5:
		return models.SeverityCritical
	case ratio >= 1.2:
		return models.SeverityHigh
	case ratio >= 1.0:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// latest reads the newest row of a category. A read failure is logged and
// treated like an empty table.
func (e *AlertEngine) latest(ctx context.Context, c models.Category) (models.Record, bool) {
	rows, err := e.store.QueryLatest(ctx, c.Table(), 1)
	if err != nil {
		e.log.Warn("alert rule skipped", "category", c, "error", fmt.Errorf("%w: %v", ErrStorageRead, err))
		return nil, false
	}
	if len(rows) == 0 {
		return nil, false
	}
	return rows[0], true
}

func (e *AlertEngine) checkCPU(ctx context.Context, t models.Thresholds) []models.AlertCandidate {
	row, ok := e.latest(ctx, models.CategoryCPU)
	if !ok {
		return nil
	}
	var out []models.AlertCandidate
	if usage, ok := row.Float("cpu_usage_percent"); ok && usage > t.CPU {
		out = append(out, models.AlertCandidate{
			Type:           models.AlertCPUUsageHigh,
			Severity:       SeverityFor(usage, t.CPU),
			Message:        fmt.Sprintf("CPU usage is %s%% (threshold: %s%%)", num(usage), num(t.CPU)),
			MetricValue:    usage,
			ThresholdValue: t.CPU,
		})
	}
	if temp, ok := row.Float("cpu_temp_celsius"); ok && temp > t.Temperature {
		out = append(out, models.AlertCandidate{
			Type:           models.AlertCPUTemperatureHigh,
			Severity:       SeverityFor(temp, t.Temperature),
			Message:        fmt.Sprintf("CPU temperature is %s°C (threshold: %s°C)", num(temp), num(t.Temperature)),
			MetricValue:    temp,
			ThresholdValue: t.Temperature,
		})
	}
	return out
}

func (e *AlertEngine) checkMemory(ctx context.Context, t models.Thresholds) []models.AlertCandidate {
	row, ok := e.latest(ctx, models.CategoryMemory)
	if !ok {
		return nil
	}
	var out []models.AlertCandidate
	if usage, ok := row.Float("usage_percent"); ok && usage > t.Memory {
		out = append(out, models.AlertCandidate{
			Type:           models.AlertMemoryUsageHigh,
			Severity:       SeverityFor(usage, t.Memory),
			Message:        fmt.Sprintf("Memory usage is %s%% (threshold: %s%%)", num(usage), num(t.Memory)),
			MetricValue:    usage,
			ThresholdValue: t.Memory,
		})
	}
	if swap, ok := row.Float("swap_usage_percent"); ok && swap > swapThreshold {
		out = append(out, models.AlertCandidate{
			Type:           models.AlertSwapUsageHigh,
			Severity:       SeverityFor(swap, swapThreshold),
			Message:        fmt.Sprintf("Swap usage is %s%% (threshold: %d%%)", num(swap), swapThreshold),
			MetricValue:    swap,
			ThresholdValue: swapThreshold,
		})
	}
	return out
}

// checkDisk evaluates the newest row of every filesystem seen in the last five minutes
func (e *AlertEngine) checkDisk(ctx context.Context, t models.Thresholds) []models.AlertCandidate {
	now := e.now()
	rows, err := e.store.QueryRange(ctx, models.CategoryDisk.Table(), now.Add(-recentWindow), now, 0)
	if err != nil {
		e.log.Warn("alert rule skipped", "category", models.CategoryDisk, "error", fmt.Errorf("%w: %v", ErrStorageRead, err))
		return nil
	}
	var out []models.AlertCandidate
	seen := make(map[string]bool)
	for _, row := range rows {
		d := models.DiskReadingFromRecord(row)
		if seen[d.MountPoint] {
			continue
		}
		seen[d.MountPoint] = true
		if d.UsagePercent <= t.Disk {
			continue
		}
		out = append(out, models.AlertCandidate{
			Type:     models.AlertDiskUsageHigh,
			Severity: SeverityFor(d.UsagePercent, t.Disk),
			Message: fmt.Sprintf("Disk usage on %s (%s) is %s%% (threshold: %s%%)",
				d.MountPoint, d.Filesystem, num(d.UsagePercent), num(t.Disk)),
			MetricValue:    d.UsagePercent,
			ThresholdValue: t.Disk,
			Target:         d.MountPoint,
		})
	}
	return out
}

func (e *AlertEngine) checkGPU(ctx context.Context, t models.Thresholds) []models.AlertCandidate {
	row, ok := e.latest(ctx, models.CategoryGPU)
	if !ok {
		return nil
	}
	temp, ok := row.Float("gpu_temp_celsius")
	if !ok || temp <= t.Temperature {
		return nil
	}
	return []models.AlertCandidate{{
		Type:           models.AlertGPUTemperatureHigh,
		Severity:       SeverityFor(temp, t.Temperature),
		Message:        fmt.Sprintf("GPU temperature is %s°C (threshold: %s°C)", num(temp), num(t.Temperature)),
		MetricValue:    temp,
		ThresholdValue: t.Temperature,
	}}
}

func (e *AlertEngine) checkLoad(ctx context.Context, t models.Thresholds) []models.AlertCandidate {
	row, ok := e.latest(ctx, models.CategoryCPU)
	if !ok {
		return nil
	}
	avg, ok := row.Float("load_avg_15min")
	if !ok || avg <= t.Load {
		return nil
	}
	return []models.AlertCandidate{{
		Type:           models.AlertLoadAverageHigh,
		Severity:       SeverityFor(avg, t.Load),
		Message:        fmt.Sprintf("15-minute load average is %s (threshold: %s)", num(avg), num(t.Load)),
		MetricValue:    avg,
		ThresholdValue: t.Load,
	}}
}

func (e *AlertEngine) checkProcesses(ctx context.Context, _ models.Thresholds) []models.AlertCandidate {
	row, ok := e.latest(ctx, models.CategoryProcess)
	if !ok {
		return nil
	}
	var out []models.AlertCandidate
	if zombies, ok := row.Int("zombie_processes"); ok && zombies > zombieLimit {
		out = append(out, models.AlertCandidate{
			Type:           models.AlertZombieProcessesHigh,
			Severity:       models.SeverityMedium,
			Message:        fmt.Sprintf("%d zombie processes detected", zombies),
			MetricValue:    float64(zombies),
			ThresholdValue: zombieLimit,
		})
	}
	if total, ok := row.Int("total_processes"); ok && total > processCountLimit {
		out = append(out, models.AlertCandidate{
			Type:           models.AlertProcessCountHigh,
			Severity:       models.SeverityLow,
			Message:        fmt.Sprintf("Total process count is %d (threshold: %d)", total, processCountLimit),
			MetricValue:    float64(total),
			ThresholdValue: processCountLimit,
		})
	}
	return out
}
