package db

import (
	"context"
	"testing"
	"time"

	"raspimon/internal/models"
)

func insertAlert(t *testing.T, store *Store, typ models.AlertType, sev models.Severity) int64 {
	t.Helper()
	id, _, err := store.InsertAlert(context.Background(), models.AlertCandidate{
		Type: typ, Severity: sev, Message: "m", MetricValue: 90, ThresholdValue: 80,
	})
	if err != nil {
		t.Fatalf("insert alert: %v", err)
	}
	return id
}

func TestResolveAlertIsConditional(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()
	id := insertAlert(t, store, models.AlertCPUUsageHigh, models.SeverityMedium)

	clock.t = clock.t.Add(time.Minute)
	ok, err := store.ResolveAlert(ctx, id)
	if err != nil || !ok {
		t.Fatalf("first resolve = %v, %v", ok, err)
	}
	first, err := store.GetAlert(ctx, id)
	if err != nil {
		t.Fatal(err)
	}

	clock.t = clock.t.Add(time.Minute)
	ok, err = store.ResolveAlert(ctx, id)
	if err != nil || ok {
		t.Fatalf("second resolve = %v, %v, want false", ok, err)
	}
	second, err := store.GetAlert(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Resolved || second.ResolvedAt == nil || !second.ResolvedAt.Equal(*first.ResolvedAt) {
		t.Fatalf("resolved_at changed: %v -> %v", first.ResolvedAt, second.ResolvedAt)
	}

	if ok, _ := store.ResolveAlert(ctx, 9999); ok {
		t.Fatal("missing alert reported as resolved")
	}
}

func TestResolveAlertsByFilter(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	insertAlert(t, store, models.AlertCPUUsageHigh, models.SeverityMedium)
	insertAlert(t, store, models.AlertCPUUsageHigh, models.SeverityHigh)
	insertAlert(t, store, models.AlertMemoryUsageHigh, models.SeverityHigh)

	n, err := store.ResolveAlerts(ctx, models.AlertFilter{Type: models.AlertCPUUsageHigh})
	if err != nil || n != 2 {
		t.Fatalf("resolve cpu = %d, %v", n, err)
	}
	open := false
	active, err := store.ListAlerts(ctx, models.AlertFilter{Resolved: &open}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].Type != models.AlertMemoryUsageHigh {
		t.Fatalf("unexpected active alerts %+v", active)
	}
}

func TestAutoResolveAlerts(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()
	start := clock.t

	cpuAlert := insertAlert(t, store, models.AlertCPUUsageHigh, models.SeverityMedium)
	memAlert := insertAlert(t, store, models.AlertMemoryUsageHigh, models.SeverityMedium)

	clock.t = start.Add(time.Minute)
	if _, err := store.Insert(ctx, "cpu_metrics", models.CPUReading{UsagePercent: 40, CPUCount: 4}.Record()); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Insert(ctx, "memory_metrics", models.MemoryReading{UsagePercent: 80}.Record()); err != nil {
		t.Fatal(err)
	}

	since := clock.t.Add(-5 * time.Minute)
	n, err := store.AutoResolveAlerts(ctx, models.AutoResolveRule{
		Type: models.AlertCPUUsageHigh, Table: "cpu_metrics", Column: "cpu_usage_percent", Below: 64,
	}, since)
	if err != nil || n != 1 {
		t.Fatalf("cpu auto resolve = %d, %v", n, err)
	}
	n, err = store.AutoResolveAlerts(ctx, models.AutoResolveRule{
		Type: models.AlertMemoryUsageHigh, Table: "memory_metrics", Column: "usage_percent", Below: 68,
	}, since)
	if err != nil || n != 0 {
		t.Fatalf("memory auto resolve = %d, %v, want 0", n, err)
	}

	if a, _ := store.GetAlert(ctx, cpuAlert); !a.Resolved {
		t.Fatal("cpu alert should be resolved")
	}
	if a, _ := store.GetAlert(ctx, memAlert); a.Resolved {
		t.Fatal("memory alert should still be open")
	}

	if _, err := store.AutoResolveAlerts(ctx, models.AutoResolveRule{Table: "cpu_metrics", Column: "x"}, since); err == nil {
		t.Fatal("unknown column should be rejected")
	}
}

func TestAlertTypeSummary(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()
	insertAlert(t, store, models.AlertDiskUsageHigh, models.SeverityHigh)
	id := insertAlert(t, store, models.AlertDiskUsageHigh, models.SeverityHigh)
	insertAlert(t, store, models.AlertLoadAverageHigh, models.SeverityMedium)
	if _, err := store.ResolveAlert(ctx, id); err != nil {
		t.Fatal(err)
	}

	summary, err := store.AlertTypeSummary(ctx, clock.t.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(summary) != 2 {
		t.Fatalf("summary len = %d, want 2", len(summary))
	}
	if summary[0].Type != models.AlertDiskUsageHigh || summary[0].Count != 2 || summary[0].Active != 1 {
		t.Fatalf("unexpected first row %+v", summary[0])
	}
	if !summary[0].LastAlert.Equal(clock.t) {
		t.Fatalf("last alert = %v, want %v", summary[0].LastAlert, clock.t)
	}
}

func TestListSystemEvents(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := store.InsertEvent(ctx, models.SystemEvent{EventType: models.EventAlertResolved}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := store.InsertEvent(ctx, models.SystemEvent{EventType: "reboot", EventData: []byte(`{"by":"ops"}`)}); err != nil {
		t.Fatal(err)
	}

	events, total, err := store.ListSystemEvents(ctx, models.EventAlertResolved, clock.t.Add(-time.Hour), 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(events) != 2 {
		t.Fatalf("total=%d len=%d, want 3 and 2", total, len(events))
	}

	all, total, err := store.ListSystemEvents(ctx, "", clock.t.Add(-time.Hour), 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 4 || string(all[0].EventData) != `{"by":"ops"}` {
		t.Fatalf("unexpected newest event %+v (total %d)", all[0], total)
	}
}
