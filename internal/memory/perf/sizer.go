// Package perf implements the memory fabric's adaptive tier-sizing
// optimizer: periodically compares each tier's observed hit ratio against
// a target and grows or shrinks its capacity.
package perf

import "github.com/telos-systems/telos-core/internal/constants"

// Stats is a tier's running hit/miss counters since the last sizing pass.
type Stats struct {
	Hits   int
	Misses int
}

// HitRatio returns Hits / (Hits + Misses), or 0 if there have been no
// accesses. This is the corrected denominator from spec §9's open
// question: hits over total accesses, not hits over stored-item count.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Decision is the outcome of one sizing pass for one tier.
type Decision struct {
	NewSize int
	Grew    bool
	Shrank  bool
}

// Decide computes the new capacity for a tier given its current size and
// observed stats, using the default target hit ratio and grow/shrink
// factors unless overridden.
func Decide(currentSize int, stats Stats, targetHitRatio float64) Decision {
	ratio := stats.HitRatio()

	switch {
	case ratio < targetHitRatio:
		newSize := int(float64(currentSize) * constants.GrowFactor)
		if newSize <= currentSize {
			newSize = currentSize + 1
		}
		return Decision{NewSize: newSize, Grew: true}
	case ratio > targetHitRatio+constants.ShrinkMargin:
		newSize := int(float64(currentSize) * constants.ShrinkFactor)
		if newSize < 1 {
			newSize = 1
		}
		return Decision{NewSize: newSize, Shrank: true}
	default:
		return Decision{NewSize: currentSize}
	}
}
