// Package sync implements the memory fabric's synchronization coordinator:
// periodically pushing newer entries from a faster tier down to a slower
// one, and resolving conflicts when the same key exists in two tiers with
// distinct write times.
package sync

import "time"

// Record is the tier-agnostic view the coordinator reasons about: a key
// and the time it was last written in a given tier.
type Record struct {
	Key      string
	StoredAt time.Time
}

// Strategy resolves a conflict — the same key present in both tiers with
// different StoredAt — into the record that should win.
type Strategy func(lower, upper Record) Record

// LastWriteWins is the default strategy: the record with the later
// StoredAt wins outright.
func LastWriteWins(lower, upper Record) Record {
	if upper.StoredAt.After(lower.StoredAt) {
		return upper
	}
	return lower
}

// Merge takes the union of keys (a no-op at the single-key granularity
// this coordinator resolves at) and the later timestamp per key — for a
// single conflicting key this reduces to LastWriteWins, but Merge is kept
// distinct so callers can later extend it to per-field merging without
// changing the strategy signature.
func Merge(lower, upper Record) Record {
	return LastWriteWins(lower, upper)
}

// VersionVector resolves using a caller-supplied vector-clock comparison.
// Since Record here carries only a scalar timestamp (the fabric does not
// maintain full vector clocks), VersionVector degrades to comparing
// StoredAt, same as LastWriteWins; it is kept as a distinct, named
// strategy so configuration can select it without a behavior change being
// silently absorbed into "last_write_wins".
func VersionVector(lower, upper Record) Record {
	return LastWriteWins(lower, upper)
}

// StrategyByName resolves a configuration string to a Strategy.
func StrategyByName(name string) Strategy {
	switch name {
	case "merge":
		return Merge
	case "version_vector":
		return VersionVector
	default:
		return LastWriteWins
	}
}

// Push describes one newer-tier-to-older-tier synchronization decision:
// Key should be written into the lower (slower) tier using the winning
// record.
type Push struct {
	Key     string
	Winner  Record
}

// Reconcile compares the records resident in an upper (faster) tier
// against a lower (slower) tier and returns the set of pushes needed to
// bring the lower tier up to date, applying strategy to any key present
// in both with differing StoredAt.
func Reconcile(upper, lower []Record, strategy Strategy) []Push {
	lowerByKey := make(map[string]Record, len(lower))
	for _, r := range lower {
		lowerByKey[r.Key] = r
	}

	var pushes []Push
	for _, u := range upper {
		l, exists := lowerByKey[u.Key]
		if !exists {
			pushes = append(pushes, Push{Key: u.Key, Winner: u})
			continue
		}
		if l.StoredAt.Equal(u.StoredAt) {
			continue
		}
		winner := strategy(l, u)
		if winner.StoredAt.After(l.StoredAt) {
			pushes = append(pushes, Push{Key: u.Key, Winner: winner})
		}
	}
	return pushes
}
