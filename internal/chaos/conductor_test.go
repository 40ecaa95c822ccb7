package chaos

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/telos-systems/telos-core/internal/chaos/target"
)

// fakeMetricSource serves a fixed queue of readings, falling back to the
// last value once the queue is drained; an empty queue always misses.
type fakeMetricSource struct {
	values []float64
	i      int
}

func (f *fakeMetricSource) GetMetric(name string) (float64, bool) {
	if len(f.values) == 0 {
		return 0, false
	}
	v := f.values[f.i]
	if f.i < len(f.values)-1 {
		f.i++
	}
	return v, true
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SteadyStateCheckInterval = time.Millisecond
	cfg.BaselineSampleInterval = time.Millisecond
	cfg.ExperimentTimeout = time.Second
	return cfg
}

func TestConductor_PassedExperimentRestoresTarget(t *testing.T) {
	var injected, restored bool
	tgt := &target.FuncTarget{
		InjectFunc:  func(ctx context.Context, hazard string, params map[string]any) error { injected = true; return nil },
		RestoreFunc: func(ctx context.Context) error { restored = true; return nil },
	}
	metrics := &fakeMetricSource{values: []float64{50, 50, 50, 50, 50, 50, 52, 51, 50}}

	c := NewConductor(testConfig())
	c.Register(&Experiment{
		ID:               "latency-ok",
		Target:           tgt,
		Hazard:           "latency",
		MetricSource:     metrics,
		MetricName:       "p99",
		SuccessThreshold: 1.1,
		Duration:         3 * time.Millisecond,
	})

	result, err := c.StartExperiment(context.Background(), "latency-ok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusPassed {
		t.Errorf("expected passed, got %s (breach=%+v)", result.Status, result.Breach)
	}
	if !injected || !restored {
		t.Error("expected target to be injected and restored")
	}
	if result.Baseline != 50 {
		t.Errorf("expected baseline 50, got %f", result.Baseline)
	}
}

func TestConductor_LatencyLikeMetricBreachesAboveThreshold(t *testing.T) {
	tgt := &target.FuncTarget{}
	// Baseline averages to 50; monitoring then reads 100, well above
	// baseline*1.1 = 55.
	metrics := &fakeMetricSource{values: []float64{50, 50, 50, 50, 50, 50, 100}}

	c := NewConductor(testConfig())
	c.Register(&Experiment{
		ID:               "latency-breach",
		Target:           tgt,
		MetricSource:     metrics,
		MetricName:       "p99",
		RatioMetric:      false,
		SuccessThreshold: 1.1,
		Duration:         20 * time.Millisecond,
	})

	result, err := c.StartExperiment(context.Background(), "latency-breach")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}
	if result.Breach == nil || result.Breach.Type != BreachThreshold {
		t.Fatalf("expected a threshold breach, got %+v", result.Breach)
	}
}

func TestConductor_RatioMetricBreachesBelowThreshold(t *testing.T) {
	tgt := &target.FuncTarget{}
	metrics := &fakeMetricSource{values: []float64{0.95, 0.95, 0.95, 0.95, 0.95, 0.95, 0.5}}

	c := NewConductor(testConfig())
	c.Register(&Experiment{
		ID:               "ratio-breach",
		Target:           tgt,
		MetricSource:     metrics,
		MetricName:       "schema_adherence_rate",
		RatioMetric:      true,
		SuccessThreshold: 0.8,
		Duration:         20 * time.Millisecond,
	})

	result, err := c.StartExperiment(context.Background(), "ratio-breach")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}
	if result.Breach == nil || result.Breach.Type != BreachThreshold {
		t.Fatalf("expected a threshold breach, got %+v", result.Breach)
	}
}

func TestConductor_MetricUnavailableDuringBaselineIsAnError(t *testing.T) {
	tgt := &target.FuncTarget{}
	metrics := &fakeMetricSource{values: nil}

	c := NewConductor(testConfig())
	c.Register(&Experiment{
		ID:               "unavailable-baseline",
		Target:           tgt,
		MetricSource:     metrics,
		MetricName:       "missing",
		SuccessThreshold: 1.1,
		Duration:         10 * time.Millisecond,
	})

	result, err := c.StartExperiment(context.Background(), "unavailable-baseline")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusError {
		t.Fatalf("expected error status when baseline can't be sampled, got %s", result.Status)
	}
}

// flakyAfterMetricSource answers baseline reads normally, then reports
// unavailable once exhausted, simulating a metric source disappearing
// mid-monitoring.
type flakyAfterMetricSource struct {
	good  float64
	calls int
	limit int
}

func (f *flakyAfterMetricSource) GetMetric(name string) (float64, bool) {
	f.calls++
	if f.calls > f.limit {
		return 0, false
	}
	return f.good, true
}

func TestConductor_MetricUnavailableDuringMonitoringIsAFailedBreach(t *testing.T) {
	tgt := &target.FuncTarget{}
	metrics := &flakyAfterMetricSource{good: 50, limit: 6}

	c := NewConductor(testConfig())
	c.Register(&Experiment{
		ID:               "unavailable-monitoring",
		Target:           tgt,
		MetricSource:     metrics,
		MetricName:       "p99",
		SuccessThreshold: 1.1,
		Duration:         20 * time.Millisecond,
	})

	result, err := c.StartExperiment(context.Background(), "unavailable-monitoring")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusFailed {
		t.Fatalf("expected failed status, got %s", result.Status)
	}
	if result.Breach == nil || result.Breach.Type != BreachMetricUnavailable {
		t.Fatalf("expected a metric_unavailable breach, got %+v", result.Breach)
	}
}

func TestConductor_InjectFailureIsAnErrorStatus(t *testing.T) {
	wantErr := errors.New("target rejected hazard")
	tgt := &target.FuncTarget{
		InjectFunc: func(ctx context.Context, hazard string, params map[string]any) error { return wantErr },
	}
	metrics := &fakeMetricSource{values: []float64{1, 1, 1, 1, 1, 1}}

	c := NewConductor(testConfig())
	c.Register(&Experiment{
		ID:               "inject-fails",
		Target:           tgt,
		MetricSource:     metrics,
		MetricName:       "m",
		SuccessThreshold: 1.1,
		Duration:         5 * time.Millisecond,
	})

	result, err := c.StartExperiment(context.Background(), "inject-fails")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusError {
		t.Errorf("expected error status, got %s", result.Status)
	}
}

func TestConductor_RejectsConcurrentRunsOfSameID(t *testing.T) {
	release := make(chan struct{})
	tgt := &target.FuncTarget{
		InjectFunc: func(ctx context.Context, hazard string, params map[string]any) error {
			<-release
			return nil
		},
	}
	metrics := &fakeMetricSource{values: []float64{1, 1, 1, 1, 1, 1}}

	c := NewConductor(testConfig())
	c.Register(&Experiment{
		ID:               "same-id",
		Target:           tgt,
		MetricSource:     metrics,
		MetricName:       "m",
		SuccessThreshold: 1.1,
		Duration:         time.Millisecond,
	})

	done := make(chan struct{})
	go func() {
		c.StartExperiment(context.Background(), "same-id")
		close(done)
	}()

	// Give the goroutine a chance to mark the experiment running.
	time.Sleep(10 * time.Millisecond)
	_, err := c.StartExperiment(context.Background(), "same-id")
	if err == nil {
		t.Error("expected concurrent run of the same id to be rejected")
	}

	close(release)
	<-done
}

func TestConductor_UnregisteredExperimentErrors(t *testing.T) {
	c := NewConductor(testConfig())
	if _, err := c.StartExperiment(context.Background(), "nonexistent"); err == nil {
		t.Error("expected an error for an unregistered experiment id")
	}
}

func TestConductor_FailedExperimentEmitsLearningQuery(t *testing.T) {
	var got LearningQuery
	sink := sinkFunc(func(q LearningQuery) { got = q })

	tgt := &target.FuncTarget{}
	metrics := &fakeMetricSource{values: []float64{50, 50, 50, 50, 50, 50, 100}}

	cfg := testConfig()
	cfg.LearningSink = sink
	c := NewConductor(cfg)
	c.Register(&Experiment{
		ID:               "emits-query",
		Target:           tgt,
		MetricSource:     metrics,
		MetricName:       "p99",
		SuccessThreshold: 1.1,
		Duration:         20 * time.Millisecond,
	})

	if _, err := c.StartExperiment(context.Background(), "emits-query"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ExperimentID != "emits-query" || got.FailureMode != string(StatusFailed) {
		t.Errorf("expected a learning query for the failed experiment, got %+v", got)
	}
}

type sinkFunc func(LearningQuery)

func (f sinkFunc) EmitLearningQuery(q LearningQuery) { f(q) }

func TestConductor_GauntletAggregatesAllRegisteredExperiments(t *testing.T) {
	c := NewConductor(testConfig())

	pass := &fakeMetricSource{values: []float64{50, 50, 50, 50, 50, 50, 50}}
	fail := &fakeMetricSource{values: []float64{50, 50, 50, 50, 50, 50, 100}}

	c.Register(&Experiment{ID: "a", Target: &target.FuncTarget{}, MetricSource: pass, MetricName: "m", SuccessThreshold: 1.1, Duration: 2 * time.Millisecond})
	c.Register(&Experiment{ID: "b", Target: &target.FuncTarget{}, MetricSource: fail, MetricName: "m", SuccessThreshold: 1.1, Duration: 20 * time.Millisecond})

	report := c.RunValidationGauntlet(context.Background())
	if report.Total != 2 {
		t.Errorf("expected 2 experiments, got %d", report.Total)
	}
	if report.Passed != 1 {
		t.Errorf("expected 1 passed, got %d", report.Passed)
	}
	if report.SuccessRate != 0.5 {
		t.Errorf("expected success rate 0.5, got %f", report.SuccessRate)
	}
}

func TestConductor_GetExperimentHistoryBoundsToLimit(t *testing.T) {
	c := NewConductor(testConfig())
	metrics := &fakeMetricSource{values: []float64{1, 1, 1, 1, 1, 1}}
	for _, id := range []string{"x", "y", "z"} {
		c.Register(&Experiment{ID: id, Target: &target.FuncTarget{}, MetricSource: metrics, MetricName: "m", SuccessThreshold: 1.1, Duration: time.Millisecond})
		if _, err := c.StartExperiment(context.Background(), id); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	history := c.GetExperimentHistory(2)
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	if history[len(history)-1].ExperimentID != "z" {
		t.Errorf("expected most recent entry last, got %q", history[len(history)-1].ExperimentID)
	}

	full := c.GetExperimentHistory(0)
	if len(full) != 3 {
		t.Errorf("expected full history of 3, got %d", len(full))
	}
}
