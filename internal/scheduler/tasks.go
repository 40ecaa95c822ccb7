package scheduler

import (
	"context"
	"time"

	"github.com/telos-systems/telos-core/internal/chaos"
	"github.com/telos-systems/telos-core/internal/constants"
	"github.com/telos-systems/telos-core/internal/graphindex"
)

// fabricOutbox, fabricSync, and fabricOptimizer are the slices of
// *fabric.Fabric each task below needs, kept narrow so a caller can wire a
// fake in tests without pulling in the whole fabric.
type fabricOutbox interface {
	DrainOutboxOnce(ctx context.Context)
}

type fabricSync interface {
	RunSync(ctx context.Context) error
}

type fabricOptimizer interface {
	Optimize(ctx context.Context) error
}

// NewOutboxDrainTask wires the fabric's write-behind outbox processor in
// as a named background task, replacing a recursive drain-then-sleep loop.
func NewOutboxDrainTask(f fabricOutbox) Task {
	return Task{
		Name:     "outbox-drain",
		Interval: time.Duration(constants.OutboxDrainIntervalSeconds) * time.Second,
		Fn: func(ctx context.Context) error {
			f.DrainOutboxOnce(ctx)
			return nil
		},
	}
}

// NewSyncTask wires the fabric's tier synchronization coordinator in as a
// named background task.
func NewSyncTask(f fabricSync) Task {
	return Task{
		Name:     "tier-sync",
		Interval: time.Duration(constants.DefaultSyncIntervalSeconds) * time.Second,
		Fn:       f.RunSync,
	}
}

// NewOptimizeTask wires the fabric's adaptive tier-sizing optimizer in as
// a named background task.
func NewOptimizeTask(f fabricOptimizer) Task {
	return Task{
		Name:     "tier-optimize",
		Interval: time.Duration(constants.DefaultOptimizeIntervalSeconds) * time.Second,
		Fn:       f.Optimize,
	}
}

// NewGraphIndexTask wires a periodic Graph Indexer pass in as a named
// background task.
func NewGraphIndexTask(idx *graphindex.Indexer) Task {
	return Task{
		Name:     "graph-index",
		Interval: time.Duration(constants.DefaultIndexIntervalSeconds) * time.Second,
		Fn:       idx.Run,
	}
}

// NewChaosGauntletTask wires a periodic run of the full validation
// gauntlet (every registered chaos experiment) in as a named background
// task. Unlike the other tasks this one is opt-in: continuous chaos
// injection against a live deployment needs an operator decision, so
// callers register it explicitly rather than it being implied by
// constructing a Conductor.
func NewChaosGauntletTask(c *chaos.Conductor, interval time.Duration) Task {
	return Task{
		Name:     "chaos-gauntlet",
		Interval: interval,
		Fn: func(ctx context.Context) error {
			c.RunValidationGauntlet(ctx)
			return nil
		},
	}
}
