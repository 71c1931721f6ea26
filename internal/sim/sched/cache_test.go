package sched

import (
	"testing"
	"time"

	"raidcraft.ai/internal/sim/geo"
)

func TestTTLCache_ExpiresAndSweeps(t *testing.T) {
	now := time.Unix(100, 0)
	c := newTTLCache(2 * time.Second)
	c.nowFn = func() time.Time { return now }

	key := scanKey("owner_1", geo.Vec3{X: 3, Y: 1, Z: 3}, 12)
	c.put(key, geo.Cell{X: 5, Y: 1, Z: 5}, true)

	cell, found, hit := c.get(key)
	if !hit || !found || cell != (geo.Cell{X: 5, Y: 1, Z: 5}) {
		t.Fatalf("fresh entry: cell=%v found=%v hit=%v", cell, found, hit)
	}

	now = now.Add(3 * time.Second)
	if _, _, hit := c.get(key); hit {
		t.Fatal("entry should expire after the ttl")
	}
	if n := c.sweep(); n != 1 {
		t.Fatalf("sweep: want 1 eviction, got %d", n)
	}
	if n := c.sweep(); n != 0 {
		t.Fatalf("second sweep: want 0 evictions, got %d", n)
	}
}

func TestTTLCache_NegativeResultsAreCached(t *testing.T) {
	c := newTTLCache(time.Minute)
	key := scanKey("owner_1", geo.Vec3{Y: 1}, 12)
	c.put(key, geo.Cell{}, false)

	_, found, hit := c.get(key)
	if !hit {
		t.Fatal("negative result should hit")
	}
	if found {
		t.Fatal("negative result should stay negative")
	}
}

func TestScanKey_CoarseAndOwnerScoped(t *testing.T) {
	a := scanKey("owner_1", geo.Vec3{X: 1.2, Y: 1, Z: 1.9}, 12)
	b := scanKey("owner_1", geo.Vec3{X: 2.7, Y: 1, Z: 3.1}, 12)
	if a != b {
		t.Fatal("positions inside one coarse cell should share a key")
	}

	far := scanKey("owner_1", geo.Vec3{X: 40, Y: 1, Z: 40}, 12)
	if a == far {
		t.Fatal("distant positions should not share a key")
	}
	other := scanKey("owner_2", geo.Vec3{X: 1.2, Y: 1, Z: 1.9}, 12)
	if a == other {
		t.Fatal("different owners should not share a key")
	}
	wider := scanKey("owner_1", geo.Vec3{X: 1.2, Y: 1, Z: 1.9}, 24)
	if a == wider {
		t.Fatal("different radii should not share a key")
	}
}

func TestStats_RollingWindow(t *testing.T) {
	s := NewStats(10, 30)

	s.RecordAttach(0)
	s.RecordBreach(5)
	s.RecordDetach(12)

	got := s.WindowTotals()
	if got.Attached != 1 || got.Breaches != 1 || got.Detached != 1 {
		t.Fatalf("window totals: %+v", got)
	}

	// Rotating past the full window drops the oldest buckets.
	s.RecordRecovery(45)
	got = s.WindowTotals()
	if got.Attached != 0 || got.Breaches != 0 {
		t.Fatalf("old buckets should rotate out: %+v", got)
	}
	if got.Recoveries != 1 {
		t.Fatalf("fresh bucket lost: %+v", got)
	}
}
