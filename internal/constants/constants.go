// Package constants provides named constants used throughout the telos-core
// codebase. This centralizes magic numbers for better maintainability and
// documentation.
package constants

// Memory fabric tuning constants.
const (
	// DefaultPromotionThreshold is the L2 access count after which a hit
	// schedules a promotion toward L1.
	DefaultPromotionThreshold = 100

	// DefaultTargetHitRatio is the hit ratio the adaptive sizer aims for.
	DefaultTargetHitRatio = 0.85

	// GrowFactor is the multiplier applied to a tier's max size when its
	// hit ratio falls below DefaultTargetHitRatio.
	GrowFactor = 1.2

	// ShrinkFactor is the multiplier applied when the hit ratio exceeds
	// DefaultTargetHitRatio by more than ShrinkMargin.
	ShrinkFactor = 0.8

	// ShrinkMargin is added to DefaultTargetHitRatio to form the shrink
	// threshold.
	ShrinkMargin = 0.1

	// DefaultSyncIntervalSeconds is how often the sync coordinator runs.
	DefaultSyncIntervalSeconds = 300

	// DefaultOptimizeIntervalSeconds is how often the adaptive tier-sizing
	// optimizer re-evaluates hit ratios.
	DefaultOptimizeIntervalSeconds = 600

	// MaxOutboxRetries is the retry budget before an event is dead-lettered.
	MaxOutboxRetries = 3

	// OutboxDrainIntervalSeconds is the sleep between outbox drain passes.
	OutboxDrainIntervalSeconds = 1

	// L1SmallObjectBytes is the size below which a store() call prefers L1
	// when the access pattern is frequent.
	L1SmallObjectBytes = 1024

	// L2MediumObjectBytes is the size below which a store() call prefers L2
	// when the access pattern is not frequent enough for L1.
	L2MediumObjectBytes = 100 * 1024

	// DefaultVectorDim is the default dense vector dimension for ANN adapters.
	DefaultVectorDim = 768
)

// HRC decision-cycle tuning constants.
const (
	// DefaultMaxElaborationCycles bounds the decision cycle loop.
	DefaultMaxElaborationCycles = 100

	// DefaultLearningRate (alpha) is the reinforcement learning rate for
	// operator utility updates.
	DefaultLearningRate = 0.1

	// DefaultMaxSubgoals bounds the impasse subgoal stack.
	DefaultMaxSubgoals = 10

	// ChunkMinSlots is the minimum working-memory slot count for a state to
	// be considered "non-trivial" enough to learn a chunk from.
	ChunkMinSlots = 4

	// SuccessReward and FailureReward are the reinforcement signals applied
	// to operator utility after Apply.
	SuccessReward = 0.1
	FailureReward = -0.1
)

// Active-inference planner tuning constants.
const (
	// DefaultPlanningHorizon is the number of steps simulated per policy.
	DefaultPlanningHorizon = 2

	// TransitionLearningRate (alpha) for transition probability updates.
	TransitionLearningRate = 0.05

	// CausalLearningRate (alpha) for causal graph edge strength updates.
	CausalLearningRate = 0.1

	// MinTransitionProbability and MaxTransitionProbability clamp learned
	// transition probabilities.
	MinTransitionProbability = 0.1
	MaxTransitionProbability = 0.95

	// MinPrecision and MaxPrecision clamp observation-model precision.
	MinPrecision = 0.5
	MaxPrecision = 3.0

	// IndirectEffectDamping is the fraction of a direct causal effect applied
	// to indirect effects (spec open question: treated as fixed, not learned).
	IndirectEffectDamping = 0.3

	// MaxLearningHistory bounds the outcome history kept for learning.
	MaxLearningHistory = 1000

	// LearningHistoryTrim is how many oldest entries are dropped once
	// MaxLearningHistory is exceeded.
	LearningHistoryTrim = 100
)

// Chaos conductor tuning constants.
const (
	// DefaultSteadyStateCheckIntervalSeconds is the monitoring loop sample
	// interval.
	DefaultSteadyStateCheckIntervalSeconds = 10

	// DefaultExperimentTimeoutSeconds bounds an experiment's total elapsed
	// time regardless of its configured duration.
	DefaultExperimentTimeoutSeconds = 300

	// BaselineSampleCount is how many samples are taken to compute a
	// baseline metric value.
	BaselineSampleCount = 6

	// BaselineSampleIntervalSeconds is the spacing between baseline samples.
	BaselineSampleIntervalSeconds = 2
)

// Graph indexer tuning constants.
const (
	// DefaultMaxCommunityLevels bounds the hierarchical community detection.
	DefaultMaxCommunityLevels = 3

	// DefaultModularityResolution is the Leiden-style resolution parameter.
	DefaultModularityResolution = 1.0

	// DefaultSummaryBatchSize is how many communities are summarized per
	// LLM transducer batch call.
	DefaultSummaryBatchSize = 10

	// SummaryEmbeddingDim is the dimension of the deterministic hash
	// embedding used for community summaries pending a real embedding model.
	SummaryEmbeddingDim = 384

	// DefaultIndexIntervalSeconds is how often the indexer re-runs.
	DefaultIndexIntervalSeconds = 3600
)
