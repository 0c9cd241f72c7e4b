package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"raspimon/internal/models"
)

func TestLatestSystemInfo(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	if _, err := store.LatestSystemInfo(ctx); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}

	boot := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	for _, kernel := range []string{"6.1.21-v8+", "6.6.31-v8+"} {
		info := models.SystemInfo{Hostname: "pi", Platform: "linux", Arch: "aarch64", Kernel: kernel, UptimeSeconds: 3600, BootTime: boot}
		if _, err := store.Insert(ctx, "system_info", info.Record()); err != nil {
			t.Fatal(err)
		}
		clock.t = clock.t.Add(time.Minute)
	}

	got, err := store.LatestSystemInfo(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kernel != "6.6.31-v8+" || got.UptimeSeconds != 3600 || !got.BootTime.Equal(boot) {
		t.Fatalf("latest = %+v", got)
	}
}

func TestAlertSummaryBucketsByHour(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	insert := func(sev models.Severity) {
		if _, _, err := store.InsertAlert(ctx, models.AlertCandidate{Type: models.AlertCPUUsageHigh, Severity: sev, Message: "cpu"}); err != nil {
			t.Fatal(err)
		}
	}
	clock.t = time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	insert(models.SeverityCritical)
	clock.t = time.Date(2026, 3, 1, 10, 45, 0, 0, time.UTC)
	insert(models.SeverityMedium)
	clock.t = time.Date(2026, 3, 1, 11, 5, 0, 0, time.UTC)
	insert(models.SeverityCritical)

	summary, err := store.AlertSummary(ctx, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(summary.Trend) != 2 {
		t.Fatalf("trend = %+v", summary.Trend)
	}
	newest, oldest := summary.Trend[0], summary.Trend[1]
	if newest.Hour.Hour() != 11 || newest.Count != 1 || newest.Critical != 1 {
		t.Fatalf("11:00 bucket = %+v", newest)
	}
	if oldest.Hour.Hour() != 10 || oldest.Count != 2 || oldest.Critical != 1 {
		t.Fatalf("10:00 bucket = %+v", oldest)
	}
	if len(summary.BySeverity) != 2 || len(summary.ByType) != 1 || summary.ByType[0].Count != 3 {
		t.Fatalf("grouping = %+v %+v", summary.BySeverity, summary.ByType)
	}

	later, err := store.AlertSummary(ctx, time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if len(later.Trend) != 1 || later.ByType[0].Count != 1 {
		t.Fatalf("window since 11:00 = %+v", later)
	}
}

func TestMetricsSummaryEmptyWindow(t *testing.T) {
	store, _ := newTestStore(t)
	summary, err := store.MetricsSummary(context.Background(), time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if summary.CPU.Avg != nil || summary.Memory.Max != nil || len(summary.Disk) != 0 {
		t.Fatalf("empty summary = %+v", summary)
	}
}
