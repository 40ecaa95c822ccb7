package perf

import "testing"

func TestDecide_GrowsWhenHitRatioBelowTarget(t *testing.T) {
	d := Decide(100, Stats{Hits: 50, Misses: 50}, 0.85)
	if !d.Grew {
		t.Error("expected tier to grow when hit ratio 0.5 < target 0.85")
	}
	if d.NewSize != 120 {
		t.Errorf("expected new size 120 (100*1.2), got %d", d.NewSize)
	}
}

func TestDecide_ShrinksWhenHitRatioWellAboveTarget(t *testing.T) {
	d := Decide(100, Stats{Hits: 98, Misses: 2}, 0.85)
	if !d.Shrank {
		t.Error("expected tier to shrink when hit ratio 0.98 > target+margin 0.95")
	}
	if d.NewSize != 80 {
		t.Errorf("expected new size 80 (100*0.8), got %d", d.NewSize)
	}
}

func TestDecide_StableWithinBand(t *testing.T) {
	d := Decide(100, Stats{Hits: 87, Misses: 13}, 0.85)
	if d.Grew || d.Shrank {
		t.Error("expected no resize within target band")
	}
	if d.NewSize != 100 {
		t.Errorf("expected unchanged size, got %d", d.NewSize)
	}
}

func TestStats_HitRatioZeroAccesses(t *testing.T) {
	s := Stats{}
	if s.HitRatio() != 0 {
		t.Errorf("expected 0 hit ratio with no accesses, got %f", s.HitRatio())
	}
}
