package cache

import (
	"testing"
	"time"
)

func TestFreshnessBoundary(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	stale := 5 * time.Minute
	entry := Entry{HasData: true, Status: StatusSuccess, UpdatedAt: t0}

	now := t0.Add(stale - time.Millisecond)
	f := NewFreshness(stale, func() time.Time { return now })
	if f.IsStale(entry) {
		t.Fatalf("entry younger than StaleTime must be fresh")
	}

	now = t0.Add(stale + time.Millisecond)
	if !f.IsStale(entry) {
		t.Fatalf("entry older than StaleTime must be stale")
	}
	if f.Age(entry) != stale+time.Millisecond {
		t.Fatalf("unexpected age %s", f.Age(entry))
	}
}

func TestFreshnessInvalidatedOrEmpty(t *testing.T) {
	now := time.Now()
	f := NewFreshness(time.Hour, func() time.Time { return now })
	if !f.IsStale(Entry{}) {
		t.Fatalf("entry without data is always stale")
	}
	if !f.IsStale(Entry{HasData: true, UpdatedAt: now, Invalidated: true}) {
		t.Fatalf("invalidated entry is stale regardless of age")
	}
	zero := NewFreshness(0, func() time.Time { return now })
	if !zero.IsStale(Entry{HasData: true, UpdatedAt: now}) {
		t.Fatalf("StaleTime 0 means data is stale immediately")
	}
}
