package planner

// Canonical action names from the domain's transition model.
const (
	ActionGatherInformation = "gather_information"
	ActionFocusAttention    = "focus_attention"
	ActionApplyStrategy     = "apply_strategy"
	ActionReduceComplexity  = "reduce_complexity"
	ActionConsolidateMemory = "consolidate_memory"
)

// RegisterDefaultActions populates w with the domain's canonical actions and
// their default outcome distributions and effects. Callers needing a
// different domain register their own ActionModels instead.
func RegisterDefaultActions(w *WorldModel) {
	w.RegisterAction(&ActionModel{
		Name:      ActionGatherInformation,
		Epistemic: true,
		NoOp: func(s State) bool {
			return s.get("uncertainty_level", 0) <= 0.2 // already well-informed
		},
		probabilities: map[Outcome]float64{
			OutcomeSuccess:            0.6,
			OutcomeCognitiveOverload:  0.1,
			OutcomeDistractionFailure: 0.1,
			OutcomeFailure:            0.1,
			OutcomeUnknown:            0.1,
		},
		effects: map[Outcome][]Effect{
			OutcomeSuccess:           {{Variable: "uncertainty_level", Delta: -0.4}, {Variable: "information_level", Delta: 0.3}},
			OutcomeCognitiveOverload: {{Variable: "working_memory_load", Delta: 0.2}},
			OutcomeDistractionFailure: {{Variable: "attention_focus", Delta: -0.1}},
		},
	})

	w.RegisterAction(&ActionModel{
		Name: ActionFocusAttention,
		NoOp: func(s State) bool {
			return s.get("attention_focus", 0) >= 0.8 // already focused
		},
		probabilities: map[Outcome]float64{
			OutcomeSuccess:            0.7,
			OutcomeCognitiveOverload:  0.05,
			OutcomeDistractionFailure: 0.15,
			OutcomeFailure:            0.05,
			OutcomeUnknown:            0.05,
		},
		effects: map[Outcome][]Effect{
			OutcomeSuccess: {{Variable: "attention_focus", Delta: 0.4}, {Variable: "working_memory_load", Delta: 0.05}},
		},
	})

	w.RegisterAction(&ActionModel{
		Name:    ActionApplyStrategy,
		Complex: true,
		probabilities: map[Outcome]float64{
			OutcomeSuccess:            0.5,
			OutcomeCognitiveOverload:  0.2,
			OutcomeDistractionFailure: 0.1,
			OutcomeFailure:            0.15,
			OutcomeUnknown:            0.05,
		},
		effects: map[Outcome][]Effect{
			OutcomeSuccess:           {{Variable: "goal_progress", Delta: 0.4}, {Variable: "complexity", Delta: -0.05}},
			OutcomeCognitiveOverload: {{Variable: "working_memory_load", Delta: 0.3}},
		},
	})

	w.RegisterAction(&ActionModel{
		Name: ActionReduceComplexity,
		NoOp: func(s State) bool {
			return s.get("complexity", 0) <= 0.2
		},
		probabilities: map[Outcome]float64{
			OutcomeSuccess:            0.65,
			OutcomeCognitiveOverload:  0.05,
			OutcomeDistractionFailure: 0.05,
			OutcomeFailure:            0.15,
			OutcomeUnknown:            0.1,
		},
		effects: map[Outcome][]Effect{
			OutcomeSuccess: {{Variable: "complexity", Delta: -0.3}, {Variable: "working_memory_load", Delta: -0.1}},
		},
	})

	w.RegisterAction(&ActionModel{
		Name:     ActionConsolidateMemory,
		Learning: true,
		probabilities: map[Outcome]float64{
			OutcomeSuccess:            0.55,
			OutcomeCognitiveOverload:  0.15,
			OutcomeDistractionFailure: 0.1,
			OutcomeFailure:            0.1,
			OutcomeUnknown:            0.1,
		},
		effects: map[Outcome][]Effect{
			OutcomeSuccess: {{Variable: "information_level", Delta: 0.2}, {Variable: "working_memory_load", Delta: -0.05}},
		},
	})
}
