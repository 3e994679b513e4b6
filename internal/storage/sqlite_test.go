package storage

import (
	"context"
	"errors"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}

	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

// TestTablesExist verifies the migration creates the tables the service uses.
func TestTablesExist(t *testing.T) {
	s := openTestStore(t)

	for _, table := range []string{"rate_limit", "doc_chunks"} {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %q not found in sqlite_master", table)
		}
	}
}

// TestIncrementUsageBoundary verifies the limit is exact: request N succeeds,
// request N+1 is denied and the counter stops at the limit.
func TestIncrementUsageBoundary(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	const limit = 3
	for i := 1; i <= limit; i++ {
		count, allowed, err := s.IncrementUsage(ctx, "1.2.3.4", "2026-08-28", limit)
		if err != nil {
			t.Fatalf("IncrementUsage #%d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("request #%d denied, want allowed", i)
		}
		if count != i {
			t.Errorf("count after #%d = %d, want %d", i, count, i)
		}
	}

	count, allowed, err := s.IncrementUsage(ctx, "1.2.3.4", "2026-08-28", limit)
	if err != nil {
		t.Fatalf("IncrementUsage over limit: %v", err)
	}
	if allowed {
		t.Error("request over limit was allowed")
	}
	if count != limit {
		t.Errorf("count after denial = %d, want %d", count, limit)
	}
}

// TestUsageIsolation verifies counters are independent per caller and per day.
func TestUsageIsolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, _, err := s.IncrementUsage(ctx, "a", "2026-08-27", 10); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.IncrementUsage(ctx, "a", "2026-08-28", 10); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.IncrementUsage(ctx, "b", "2026-08-28", 10); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		id, day string
		want    int
	}{
		{"a", "2026-08-27", 1},
		{"a", "2026-08-28", 1},
		{"b", "2026-08-28", 1},
		{"c", "2026-08-28", 0},
	}
	for _, tc := range cases {
		got, err := s.Usage(ctx, tc.id, tc.day)
		if err != nil {
			t.Fatalf("Usage(%s, %s): %v", tc.id, tc.day, err)
		}
		if got != tc.want {
			t.Errorf("Usage(%s, %s) = %d, want %d", tc.id, tc.day, got, tc.want)
		}
	}
}

// TestResetUsage verifies reset deletes the row and missing rows report ErrNotFound.
func TestResetUsage(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.ResetUsage(ctx, "nobody", "2026-08-28"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ResetUsage on missing row = %v, want ErrNotFound", err)
	}

	if _, _, err := s.IncrementUsage(ctx, "a", "2026-08-28", 10); err != nil {
		t.Fatal(err)
	}
	if err := s.ResetUsage(ctx, "a", "2026-08-28"); err != nil {
		t.Fatalf("ResetUsage: %v", err)
	}
	got, err := s.Usage(ctx, "a", "2026-08-28")
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Errorf("Usage after reset = %d, want 0", got)
	}
}

// TestUsageStatsOrdered verifies stats come back busiest caller first.
func TestUsageStatsOrdered(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := s.IncrementUsage(ctx, "busy", "2026-08-28", 10); err != nil {
			t.Fatal(err)
		}
	}
	if _, _, err := s.IncrementUsage(ctx, "quiet", "2026-08-28", 10); err != nil {
		t.Fatal(err)
	}

	stats, err := s.UsageStats(ctx, "2026-08-28")
	if err != nil {
		t.Fatalf("UsageStats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("len(stats) = %d, want 2", len(stats))
	}
	if stats[0].Identifier != "busy" || stats[0].InteractionCount != 3 {
		t.Errorf("stats[0] = %s/%d, want busy/3", stats[0].Identifier, stats[0].InteractionCount)
	}
}
