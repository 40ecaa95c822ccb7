package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/telos-systems/telos-core/internal/chaos"
	"github.com/telos-systems/telos-core/internal/chaos/target"
	"github.com/telos-systems/telos-core/internal/concept"
	"github.com/telos-systems/telos-core/internal/config"
	"github.com/telos-systems/telos-core/internal/logging"
	"github.com/telos-systems/telos-core/internal/memory/fabric"
	"github.com/telos-systems/telos-core/internal/telemetry"
)

// app bundles the configuration and logging every subcommand needs, built
// once from the --root/--json persistent flags.
type app struct {
	root           string
	jsonOut        bool
	cfg            *config.TelosConfig
	logger         *slog.Logger
	decisionLogger *logging.DecisionLogger
}

func newApp(cmd *cobra.Command) (*app, error) {
	root, _ := cmd.Flags().GetString("root")
	jsonOut, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load(root)
	if err != nil {
		return nil, dependencyErr(fmt.Errorf("load config: %w", err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, invariantErr(fmt.Errorf("invalid config: %w", err))
	}

	logger := logging.NewLogger(cfg.Logging.Level, os.Stderr)
	decisionLogger := logging.NewDecisionLogger(filepath.Join(root, cfg.DataRoot), cfg.Logging.Level)

	return &app{
		root:           root,
		jsonOut:        jsonOut,
		cfg:            cfg,
		logger:         logger,
		decisionLogger: decisionLogger,
	}, nil
}

func (a *app) dataRoot() string {
	return filepath.Join(a.root, a.cfg.DataRoot)
}

// openFabric constructs the memory fabric rooted at the app's data
// directory. Callers must Close it.
func (a *app) openFabric(ctx context.Context) (*fabric.Fabric, error) {
	f, err := fabric.New(ctx, fabric.Config{
		DataRoot:           a.dataRoot(),
		L1MaxEntries:       a.cfg.Memory.L1MaxEntries,
		L2MaxEntries:       a.cfg.Memory.L2MaxEntries,
		VectorDim:          a.cfg.Memory.VectorDim,
		PromotionThreshold: a.cfg.Memory.PromotionThreshold,
		ConflictStrategy:   a.cfg.Memory.ConflictStrategy,
		TargetHitRatio:     a.cfg.Memory.TargetHitRatio,
		LanceDBURI:         a.cfg.Memory.LanceDBURI,
	})
	if err != nil {
		return nil, dependencyErr(fmt.Errorf("open memory fabric: %w", err))
	}
	return f, nil
}

// openConceptRepository constructs the SQLite-backed concept repository
// rooted at the app's data directory. Callers must Close it.
func (a *app) openConceptRepository() (concept.Repository, error) {
	repo, err := concept.NewSQLiteRepository(a.dataRoot())
	if err != nil {
		return nil, dependencyErr(fmt.Errorf("open concept repository: %w", err))
	}
	return repo, nil
}

// buildChaosConductor wires a Conductor with the five canonical
// experiments against process-local targets. There is no separate-process
// deployment in this CLI, so each Target logs the hazard it would apply
// rather than pausing a real container; wire target.NewDockerTarget
// instead for a multi-process deployment.
func (a *app) buildChaosConductor() *chaos.Conductor {
	cfg := chaos.DefaultConfig()
	cfg.Logger = a.logger
	cfg.DecisionLogger = a.decisionLogger
	if a.cfg.Chaos.SteadyStateCheckIntervalSeconds > 0 {
		cfg.SteadyStateCheckInterval = secondsToDuration(a.cfg.Chaos.SteadyStateCheckIntervalSeconds)
	}
	if a.cfg.Chaos.ExperimentTimeoutSeconds > 0 {
		cfg.ExperimentTimeout = secondsToDuration(a.cfg.Chaos.ExperimentTimeoutSeconds)
	}

	conductor := chaos.NewConductor(cfg)

	metrics := telemetry.NewRegistry()
	metrics.Declare("p99_hybrid_query_latency", "L2 hybrid query p99 latency in ms", 50)
	metrics.Declare("message_queue_health_ratio", "fraction of messages processed without dead-lettering", 0.99)
	metrics.Declare("schema_adherence_rate", "fraction of transducer calls returning schema-valid output", 0.95)
	metrics.Declare("reasoning_accuracy", "HRC reasoning accuracy against held-out traces", 0.9)

	loggedTarget := func(name string) chaos.Target {
		return &target.FuncTarget{
			InjectFunc: func(ctx context.Context, hazard string, params map[string]any) error {
				a.logger.Warn("chaos: injecting hazard", "target", name, "hazard", hazard, "params", params)
				return nil
			},
			RestoreFunc: func(ctx context.Context) error {
				a.logger.Info("chaos: restoring target", "target", name)
				return nil
			},
		}
	}

	chaos.RegisterCanonicalExperiments(conductor, chaos.CanonicalDeps{
		L2Tier:                  loggedTarget("l2-tier"),
		L2LatencyMetric:         metrics,
		MessageQueue:            loggedTarget("message-queue"),
		QueueHealthMetric:       metrics,
		Transducer:              loggedTarget("transducer"),
		SchemaAdherenceMetric:   metrics,
		ControllerArbitration:   loggedTarget("hrc-arbitration"),
		ReasoningAccuracyMetric: metrics,
		MemoryFabric:            loggedTarget("memory-fabric"),
		MemoryUsageMetric:       telemetry.OSMetricSource{},
	})

	return conductor
}
