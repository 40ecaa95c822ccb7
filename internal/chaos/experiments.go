package chaos

import (
	"time"

	"github.com/telos-systems/telos-core/internal/telemetry"
)

// CanonicalDeps wires the five pre-registered experiments to the live
// subsystems they hazard, keeping the conductor itself free of imports on
// any concrete subsystem package.
type CanonicalDeps struct {
	// L2Tier is hazarded with injected latency (CEP-001).
	L2Tier Target
	// L2LatencyMetric reports the tier's current p99 query latency in ms.
	L2LatencyMetric telemetry.MetricSource

	// MessageQueue is hazarded with a poison message (CEP-002).
	MessageQueue Target
	// QueueHealthMetric reports the fraction of messages processed
	// without entering a dead-letter path.
	QueueHealthMetric telemetry.MetricSource

	// Transducer is hazarded with malformed LLM output (CEP-003).
	Transducer Target
	// SchemaAdherenceMetric reports the LLM transducer's
	// schema_adherence_rate.
	SchemaAdherenceMetric telemetry.MetricSource

	// ControllerArbitration is hazarded by forcing tied operator
	// utilities (CEP-004).
	ControllerArbitration Target
	// ReasoningAccuracyMetric reports the HRC's reasoning_accuracy.
	ReasoningAccuracyMetric telemetry.MetricSource

	// MemoryFabric is hazarded with induced memory pressure (CEP-005).
	MemoryFabric Target
	// MemoryUsageMetric reports the OS-level memory_usage.
	MemoryUsageMetric telemetry.MetricSource
}

// RegisterCanonicalExperiments registers the five pre-registered experiments
// from the validation gauntlet: L2 latency injection, poison-message
// handling, schema violations in the LLM transducer, operator-tie impasses,
// and memory pressure.
func RegisterCanonicalExperiments(c *Conductor, deps CanonicalDeps) {
	c.Register(&Experiment{
		ID:               "latency-injection-l2",
		Target:           deps.L2Tier,
		Hazard:           "latency",
		Params:           map[string]any{"latency_ms": 200},
		MetricSource:     deps.L2LatencyMetric,
		MetricName:       "p99_hybrid_query_latency",
		RatioMetric:      false,
		SuccessThreshold: 1.1,
		Duration:         60 * time.Second,
	})

	c.Register(&Experiment{
		ID:               "poison-message-handling",
		Target:           deps.MessageQueue,
		Hazard:           "poison_message",
		Params:           map[string]any{"malformed_payload": true},
		MetricSource:     deps.QueueHealthMetric,
		MetricName:       "message_queue_health_ratio",
		RatioMetric:      true,
		SuccessThreshold: 0.95,
		Duration:         30 * time.Second,
	})

	c.Register(&Experiment{
		ID:               "schema-violation-transducer",
		Target:           deps.Transducer,
		Hazard:           "malformed_schema",
		Params:           map[string]any{"violation_rate": 0.5},
		MetricSource:     deps.SchemaAdherenceMetric,
		MetricName:       "schema_adherence_rate",
		RatioMetric:      true,
		SuccessThreshold: 0.8,
		Duration:         30 * time.Second,
	})

	c.Register(&Experiment{
		ID:               "operator-tie-impasse",
		Target:           deps.ControllerArbitration,
		Hazard:           "tied_utilities",
		Params:           map[string]any{"tie_margin": 0.0},
		MetricSource:     deps.ReasoningAccuracyMetric,
		MetricName:       "reasoning_accuracy",
		RatioMetric:      true,
		SuccessThreshold: 0.7,
		Duration:         30 * time.Second,
	})

	c.Register(&Experiment{
		ID:               "memory-pressure",
		Target:           deps.MemoryFabric,
		Hazard:           "memory_pressure",
		Params:           map[string]any{"target_bytes": 512 * 1024 * 1024},
		MetricSource:     deps.MemoryUsageMetric,
		MetricName:       "memory_usage",
		RatioMetric:      false,
		SuccessThreshold: 1.5,
		Duration:         45 * time.Second,
	})
}
