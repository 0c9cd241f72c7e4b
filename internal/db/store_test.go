package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"raspimon/internal/models"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

func newTestStore(t *testing.T) (*Store, *testClock) {
	t.Helper()
	sqldb, err := Open(t.TempDir()+"/test.db", 4)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = sqldb.Close() })
	if err := Migrate(sqldb); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewStore(sqldb).WithClock(clock.now), clock
}

func TestInsertAndQueryLatestNewestFirst(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	for i, usage := range []float64{10, 20, 30} {
		clock.t = clock.t.Add(time.Duration(i) * time.Second)
		rec := models.CPUReading{UsagePercent: usage, CPUCount: 4}.Record()
		if _, err := store.Insert(ctx, "cpu_metrics", rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	rows, err := store.QueryLatest(ctx, "cpu_metrics", 2)
	if err != nil {
		t.Fatalf("query latest: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows len = %d, want 2", len(rows))
	}
	if v, _ := rows[0].Float("cpu_usage_percent"); v != 30 {
		t.Fatalf("newest row usage = %v, want 30", v)
	}
	if _, ok := rows[0].Float("cpu_temp_celsius"); ok {
		t.Fatal("nil temperature should read back as NULL")
	}
	if ts, ok := rows[0].Time("timestamp"); !ok || !ts.Equal(clock.t) {
		t.Fatalf("timestamp = %v (%v), want %v", ts, ok, clock.t)
	}
}

func TestInsertRejectsUnknownTableAndColumn(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Insert(ctx, "users", models.Record{"a": 1}); !errors.Is(err, ErrUnknownTable) {
		t.Fatalf("err = %v, want ErrUnknownTable", err)
	}
	if _, err := store.Insert(ctx, "cpu_metrics", models.Record{"evil; DROP": 1}); !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("err = %v, want ErrUnknownColumn", err)
	}
}

func TestTimestampsNeverGoBackwards(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()
	rec := models.ProcessReading{Total: 1}.Record()

	if _, err := store.Insert(ctx, "process_metrics", rec); err != nil {
		t.Fatal(err)
	}
	first := clock.t
	clock.t = clock.t.Add(-time.Hour)
	if _, err := store.Insert(ctx, "process_metrics", rec); err != nil {
		t.Fatal(err)
	}
	rows, err := store.QueryLatest(ctx, "process_metrics", 2)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range rows {
		if ts, _ := r.Time("timestamp"); ts.Before(first) {
			t.Fatalf("timestamp %v earlier than %v", ts, first)
		}
	}
}

func TestQueryRange(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()
	start := clock.t

	for i := 0; i < 5; i++ {
		clock.t = start.Add(time.Duration(i) * time.Minute)
		rec := models.DiskReading{Filesystem: "/dev/root", MountPoint: "/", UsagePercent: float64(i)}.Record()
		if _, err := store.Insert(ctx, "disk_metrics", rec); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := store.QueryRange(ctx, "disk_metrics", start.Add(time.Minute), start.Add(3*time.Minute), 0)
	if err != nil {
		t.Fatalf("query range: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows len = %d, want 3", len(rows))
	}
	d := models.DiskReadingFromRecord(rows[0])
	if d.UsagePercent != 3 || d.MountPoint != "/" {
		t.Fatalf("unexpected newest row %+v", d)
	}
}

func TestDeleteOlderThanPerTable(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()
	now := clock.t

	// one row 31 days old and one 29 days old in two tables
	for _, age := range []int{31, 29} {
		fresh := NewStore(store.DB()).WithClock(func() time.Time { return now.AddDate(0, 0, -age) })
		if _, err := fresh.Insert(ctx, "memory_metrics", models.MemoryReading{TotalBytes: 1}.Record()); err != nil {
			t.Fatal(err)
		}
		if _, err := fresh.InsertEvent(ctx, models.SystemEvent{EventType: "test"}); err != nil {
			t.Fatal(err)
		}
	}

	for _, table := range []string{"memory_metrics", "system_events"} {
		n, err := store.DeleteOlderThan(ctx, table, 30)
		if err != nil {
			t.Fatalf("cleanup %s: %v", table, err)
		}
		if n != 1 {
			t.Fatalf("%s deleted %d rows, want 1", table, n)
		}
		rows, err := store.QueryLatest(ctx, table, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) != 1 {
			t.Fatalf("%s kept %d rows, want 1", table, len(rows))
		}
	}

	if _, err := store.DeleteOlderThan(ctx, "nope", 30); !errors.Is(err, ErrUnknownTable) {
		t.Fatalf("err = %v, want ErrUnknownTable", err)
	}
}
