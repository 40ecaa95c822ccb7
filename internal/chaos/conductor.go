package chaos

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/telos-systems/telos-core/internal/constants"
	"github.com/telos-systems/telos-core/internal/logging"
)

// Config configures a Conductor.
type Config struct {
	SteadyStateCheckInterval time.Duration
	BaselineSampleInterval   time.Duration
	ExperimentTimeout        time.Duration
	Logger                   *slog.Logger
	DecisionLogger           *logging.DecisionLogger
	LearningSink             LearningSink
}

// DefaultConfig returns the spec's default monitoring cadence, baseline
// sample spacing and timeout.
func DefaultConfig() Config {
	return Config{
		SteadyStateCheckInterval: time.Duration(constants.DefaultSteadyStateCheckIntervalSeconds) * time.Second,
		BaselineSampleInterval:   time.Duration(constants.BaselineSampleIntervalSeconds) * time.Second,
		ExperimentTimeout:        time.Duration(constants.DefaultExperimentTimeoutSeconds) * time.Second,
	}
}

// Conductor registers and runs chaos experiments, validating that steady
// state holds under each injected hazard and recording every result in its
// history. The history is not trimmed; GetExperimentHistory limits only how
// many entries it returns.
type Conductor struct {
	mu          sync.Mutex
	experiments map[string]*Experiment
	running     map[string]bool
	history     []Result

	cfg Config
}

// NewConductor creates a Conductor. If cfg is the zero value, DefaultConfig
// is used.
func NewConductor(cfg Config) *Conductor {
	if cfg.SteadyStateCheckInterval == 0 {
		cfg = DefaultConfig()
	}
	return &Conductor{
		experiments: make(map[string]*Experiment),
		running:     make(map[string]bool),
		cfg:         cfg,
	}
}

// Register adds exp to the conductor's registry, keyed by exp.ID.
// Registering an id twice overwrites the previous registration.
func (c *Conductor) Register(exp *Experiment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.experiments[exp.ID] = exp
}

// StartExperiment runs the lifecycle baseline -> inject -> monitor ->
// restore -> complete for the registered experiment id, blocking until it
// finishes or ctx / the experiment timeout elapses. Two concurrent runs of
// the same id are rejected.
func (c *Conductor) StartExperiment(ctx context.Context, id string) (Result, error) {
	c.mu.Lock()
	exp, ok := c.experiments[id]
	if !ok {
		c.mu.Unlock()
		return Result{}, fmt.Errorf("chaos: experiment %q is not registered", id)
	}
	if c.running[id] {
		c.mu.Unlock()
		return Result{}, fmt.Errorf("chaos: experiment %q is already running", id)
	}
	c.running[id] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running[id] = false
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ExperimentTimeout)
	defer cancel()

	result := c.runExperiment(ctx, exp)

	c.mu.Lock()
	c.history = append(c.history, result)
	c.mu.Unlock()

	if c.cfg.DecisionLogger != nil {
		c.cfg.DecisionLogger.Log(map[string]any{
			"event":         "chaos_experiment_completed",
			"experiment_id": id,
			"status":        result.Status,
		})
	}

	if result.Status != StatusPassed && c.cfg.LearningSink != nil {
		c.cfg.LearningSink.EmitLearningQuery(LearningQuery{
			ExperimentID: id,
			FailureMode:  string(result.Status),
		})
	}

	return result, nil
}

// runExperiment performs baseline sampling, injection, monitoring against
// steady-state rules, and restoration. Once Inject has succeeded, Restore is
// always attempted before it returns; a baseline or Inject failure returns
// StatusError without calling Restore.
func (c *Conductor) runExperiment(ctx context.Context, exp *Experiment) Result {
	result := Result{ExperimentID: exp.ID, StartedAt: time.Now()}

	baseline, err := c.sampleBaseline(ctx, exp)
	if err != nil {
		result.Status = StatusError
		result.Err = err
		result.FinishedAt = time.Now()
		return result
	}
	result.Baseline = baseline

	if err := exp.Target.Inject(ctx, exp.Hazard, exp.Params); err != nil {
		result.Status = StatusError
		result.Err = fmt.Errorf("chaos: inject hazard %q: %w", exp.Hazard, err)
		result.FinishedAt = time.Now()
		return result
	}

	breach, err := c.monitorSteadyState(ctx, exp, baseline)

	if restoreErr := exp.Target.Restore(context.WithoutCancel(ctx)); restoreErr != nil && err == nil {
		err = fmt.Errorf("chaos: restore target: %w", restoreErr)
	}

	result.FinishedAt = time.Now()
	switch {
	case err != nil:
		result.Status = StatusError
		result.Err = err
	case breach != nil:
		result.Status = StatusFailed
		result.Breach = breach
	default:
		result.Status = StatusPassed
	}
	return result
}

// sampleBaseline averages BaselineSampleCount readings spaced
// cfg.BaselineSampleInterval apart, before the hazard is injected.
func (c *Conductor) sampleBaseline(ctx context.Context, exp *Experiment) (float64, error) {
	if exp.MetricSource == nil {
		return 0, fmt.Errorf("chaos: experiment %q has no metric source", exp.ID)
	}

	interval := c.cfg.BaselineSampleInterval
	total := 0.0
	for i := 0; i < constants.BaselineSampleCount; i++ {
		v, ok := exp.MetricSource.GetMetric(exp.MetricName)
		if !ok {
			return 0, fmt.Errorf("chaos: metric %q unavailable during baseline", exp.MetricName)
		}
		total += v

		if i < constants.BaselineSampleCount-1 {
			if err := sleepOrDone(ctx, interval); err != nil {
				return 0, err
			}
		}
	}
	return total / float64(constants.BaselineSampleCount), nil
}

// monitorSteadyState samples the experiment's metric every
// SteadyStateCheckInterval for exp.Duration, returning the first breach
// encountered or nil if steady state held throughout.
func (c *Conductor) monitorSteadyState(ctx context.Context, exp *Experiment, baseline float64) (*Breach, error) {
	deadline := time.Now().Add(exp.Duration)
	sample := 0
	for time.Now().Before(deadline) {
		sample++
		current, ok := exp.MetricSource.GetMetric(exp.MetricName)
		if !ok {
			return &Breach{Type: BreachMetricUnavailable, Sample: sample, Baseline: baseline}, nil
		}

		if breached(exp, baseline, current) {
			return &Breach{Type: BreachThreshold, Sample: sample, Current: current, Baseline: baseline}, nil
		}

		if err := sleepOrDone(ctx, c.cfg.SteadyStateCheckInterval); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// breached applies the steady-state rule for exp's metric kind: ratio
// metrics (e.g. schema_adherence_rate, reasoning_accuracy) breach when
// current falls below the threshold; latency-like metrics breach when
// current exceeds baseline scaled by the threshold.
func breached(exp *Experiment, baseline, current float64) bool {
	if exp.RatioMetric {
		return current < exp.SuccessThreshold
	}
	return current > baseline*exp.SuccessThreshold
}

// sleepOrDone waits for d or returns ctx.Err() if ctx is cancelled first.
func sleepOrDone(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunValidationGauntlet runs every registered experiment sequentially (never
// concurrently, since experiments mutate shared subsystem state) and
// aggregates the outcomes into a GauntletReport.
func (c *Conductor) RunValidationGauntlet(ctx context.Context) GauntletReport {
	c.mu.Lock()
	ids := make([]string, 0, len(c.experiments))
	for id := range c.experiments {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	report := GauntletReport{Total: len(ids)}
	for _, id := range ids {
		result, err := c.StartExperiment(ctx, id)
		if err != nil {
			result = Result{ExperimentID: id, Status: StatusError, Err: err}
		}
		if result.Status == StatusPassed {
			report.Passed++
		}
		report.PerExperiment = append(report.PerExperiment, result)
	}
	if report.Total > 0 {
		report.SuccessRate = float64(report.Passed) / float64(report.Total)
	}
	return report
}

// GetExperimentHistory returns the most recent limit results, oldest first.
// limit <= 0 returns the full history.
func (c *Conductor) GetExperimentHistory(limit int) []Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if limit <= 0 || limit >= len(c.history) {
		out := make([]Result, len(c.history))
		copy(out, c.history)
		return out
	}
	start := len(c.history) - limit
	out := make([]Result, limit)
	copy(out, c.history[start:])
	return out
}
