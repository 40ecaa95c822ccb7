package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/telos-systems/telos-core/internal/graphindex"
	"github.com/telos-systems/telos-core/internal/scheduler"
	"github.com/telos-systems/telos-core/internal/transducer"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Launch background tasks (outbox drain, tier sync, tier optimize, graph indexing)",
		Long: `serve runs the core's named background tasks until interrupted:
outbox draining, tier synchronization, adaptive tier-size optimization, and
periodic graph indexing. It blocks until SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			f, err := a.openFabric(ctx)
			if err != nil {
				return err
			}
			defer f.Close()

			repo, err := a.openConceptRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			var t transducer.Transducer = transducer.Disabled{}
			if a.cfg.Transducer.Enabled {
				client, err := transducer.DialGRPC(a.cfg.Transducer.Endpoint, 0, 0)
				if err != nil {
					return dependencyErr(fmt.Errorf("dial transducer: %w", err))
				}
				defer client.Close()
				t = client
			}

			indexCfg := graphindex.DefaultConfig()
			indexCfg.MaxLevels = a.cfg.GraphIndex.MaxLevels
			indexCfg.Resolution = a.cfg.GraphIndex.Resolution
			indexCfg.BatchSize = a.cfg.GraphIndex.SummaryBatchSize
			indexCfg.Logger = a.logger
			indexCfg.DecisionLogger = a.decisionLogger
			indexer := graphindex.New(repo, f, t, indexCfg)

			sched := scheduler.New(scheduler.Config{Logger: a.logger, DecisionLogger: a.decisionLogger})
			mustRegister(sched, scheduler.NewOutboxDrainTask(f))
			syncTask := scheduler.NewSyncTask(f)
			if a.cfg.Memory.SyncIntervalSeconds > 0 {
				syncTask.Interval = secondsToDuration(a.cfg.Memory.SyncIntervalSeconds)
			}
			mustRegister(sched, syncTask)
			mustRegister(sched, scheduler.NewOptimizeTask(f))
			if a.cfg.GraphIndex.IndexIntervalSeconds > 0 {
				indexTask := scheduler.NewGraphIndexTask(indexer)
				indexTask.Interval = secondsToDuration(a.cfg.GraphIndex.IndexIntervalSeconds)
				mustRegister(sched, indexTask)
			}

			sched.Start(ctx)
			defer sched.Stop()

			a.logger.Info("core: serving", "data_root", a.dataRoot())

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			select {
			case <-sigCh:
				a.logger.Info("core: shutting down")
			case <-ctx.Done():
			}
			return nil
		},
	}
}

// mustRegister registers t, panicking on error. Tasks constructed by this
// command always have distinct names and positive intervals, so Register
// can only fail here on a programming error.
func mustRegister(s *scheduler.Scheduler, t scheduler.Task) {
	if err := s.Register(t); err != nil {
		panic(fmt.Sprintf("core: %v", err))
	}
}
