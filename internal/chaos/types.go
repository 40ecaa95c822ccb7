// Package chaos implements the Chaos Conductor: a registry of fault
// experiments run against live subsystems to validate that steady state
// holds under injected hazards, and a validation gauntlet that runs every
// registered experiment and reports an aggregate success rate.
package chaos

import (
	"context"
	"time"

	"github.com/telos-systems/telos-core/internal/telemetry"
)

// Status classifies how an experiment completed.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
	StatusError  Status = "error"
)

// BreachType classifies why an experiment's steady-state check failed.
type BreachType string

const (
	// BreachThreshold fires when the sampled metric crosses the
	// experiment's success threshold.
	BreachThreshold BreachType = "threshold"
	// BreachMetricUnavailable fires when the metric source cannot produce
	// a reading during monitoring. A metric that is unavailable during
	// baseline sampling ends the experiment with StatusError instead.
	BreachMetricUnavailable BreachType = "metric_unavailable"
)

// Target is the subsystem a hazard is injected into and later restored.
// An Inject error (the target rejected the hazard) ends the experiment with
// StatusError; Restore is always attempted once monitoring ends.
type Target interface {
	Inject(ctx context.Context, hazard string, params map[string]any) error
	Restore(ctx context.Context) error
}

// Experiment parameterizes one chaos run.
type Experiment struct {
	ID     string
	Target Target
	Hazard string
	Params map[string]any

	MetricSource telemetry.MetricSource
	MetricName   string

	// RatioMetric marks metrics like schema_adherence_rate and
	// reasoning_accuracy that breach when current < SuccessThreshold,
	// rather than latency-like metrics that breach when
	// current > baseline * SuccessThreshold.
	RatioMetric bool

	SuccessThreshold float64
	Duration         time.Duration
}

// Breach records a single steady-state violation.
type Breach struct {
	Type     BreachType
	Sample   int
	Current  float64
	Baseline float64
}

// Result is one experiment's outcome, as recorded in experiment history.
type Result struct {
	ExperimentID string
	Status       Status
	Baseline     float64
	Breach       *Breach
	Err          error
	StartedAt    time.Time
	FinishedAt   time.Time
}

// GauntletReport is runValidationGauntlet's return value.
type GauntletReport struct {
	Total         int
	Passed        int
	SuccessRate   float64
	PerExperiment []Result
}

// LearningQuery is emitted to the HRC when an experiment reveals a
// weakness (a failed or errored completion), tagged with the experiment id
// and failure mode for the controller's elaboration phase to pick up.
type LearningQuery struct {
	ExperimentID string
	FailureMode  string
}

// LearningSink receives learning queries emitted by failed or errored
// experiments. A nil sink is valid; EmitLearningQuery is simply skipped.
type LearningSink interface {
	EmitLearningQuery(q LearningQuery)
}
