package hrc

import "testing"

// testOperator is a minimal configurable Operator for testing the decision
// cycle's five phases in isolation.
type testOperator struct {
	name           string
	precondition   func(WorkingMemory) bool
	cost           float64
	complexCapable bool
	initialUtility float64
	apply          func(WorkingMemory) (WorkingMemory, bool)
}

func (o *testOperator) Name() string                        { return o.name }
func (o *testOperator) Precondition(s WorkingMemory) bool    { return o.precondition == nil || o.precondition(s) }
func (o *testOperator) Cost(WorkingMemory) float64           { return o.cost }
func (o *testOperator) ComplexCapable() bool                 { return o.complexCapable }
func (o *testOperator) InitialUtility() float64              { return o.initialUtility }
func (o *testOperator) Apply(s WorkingMemory) (WorkingMemory, bool) {
	if o.apply != nil {
		return o.apply(s)
	}
	return s, true
}

func setSlot(key string, value any) func(WorkingMemory) (WorkingMemory, bool) {
	return func(s WorkingMemory) (WorkingMemory, bool) {
		next := s.Clone()
		next.Slots[key] = value
		return next, true
	}
}

func TestController_OperatorsReturnsRegisteredOperatorsInOrder(t *testing.T) {
	registry := NewOperatorRegistry()
	_ = registry.Register(&testOperator{name: "first"})
	_ = registry.Register(&testOperator{name: "second"})

	c := NewController(registry, Config{MaxElaborationCycles: 1, MaxSubgoals: 10, LearningRate: 0.1})
	ops := c.Operators()

	if len(ops) != 2 {
		t.Fatalf("expected 2 operators, got %d", len(ops))
	}
	if ops[0].Name() != "first" || ops[1].Name() != "second" {
		t.Errorf("expected [first second] in registration order, got [%s %s]", ops[0].Name(), ops[1].Name())
	}
}

func TestRunDecisionCycle_SelectsHighestUtilityOperator(t *testing.T) {
	registry := NewOperatorRegistry()
	_ = registry.Register(&testOperator{name: "low", initialUtility: 0.3, apply: setSlot("ran", "low")})
	_ = registry.Register(&testOperator{name: "high", initialUtility: 0.8, apply: setSlot("ran", "high")})

	c := NewController(registry, Config{MaxElaborationCycles: 1, MaxSubgoals: 10, LearningRate: 0.1, ChunkingEnabled: false})
	result := c.RunDecisionCycle(WorkingMemory{Slots: map[string]any{}})

	if result.SelectedOperator != "high" {
		t.Errorf("expected 'high' operator selected, got %q", result.SelectedOperator)
	}
	if result.FinalState.Slots["ran"] != "high" {
		t.Errorf("expected state effect from 'high' operator, got %v", result.FinalState.Slots["ran"])
	}
}

func TestRunDecisionCycle_NoApplicableOperatorsRaisesOperatorNoChange(t *testing.T) {
	registry := NewOperatorRegistry()
	_ = registry.Register(&testOperator{
		name:         "never",
		precondition: func(WorkingMemory) bool { return false },
	})

	c := NewController(registry, Config{MaxElaborationCycles: 1, MaxSubgoals: 10, LearningRate: 0.1})
	result := c.RunDecisionCycle(WorkingMemory{Slots: map[string]any{}})

	if result.Impasse == nil || result.Impasse.Type != OperatorNoChange {
		t.Fatalf("expected operator_no_change impasse, got %v", result.Impasse)
	}
	if result.Impasse.ProblemSpace != "find_new_operators" {
		t.Errorf("expected problem space 'find_new_operators', got %s", result.Impasse.ProblemSpace)
	}
}

func TestRunDecisionCycle_EqualUtilityAndCostRaisesOperatorTie(t *testing.T) {
	registry := NewOperatorRegistry()
	_ = registry.Register(&testOperator{name: "a", initialUtility: 0.8, cost: 1.0})
	_ = registry.Register(&testOperator{name: "b", initialUtility: 0.8, cost: 1.0})

	c := NewController(registry, Config{MaxElaborationCycles: 1, MaxSubgoals: 10, LearningRate: 0.1})
	result := c.RunDecisionCycle(WorkingMemory{Slots: map[string]any{}})

	if result.Impasse == nil || result.Impasse.Type != OperatorTie {
		t.Fatalf("expected operator_tie impasse, got %v", result.Impasse)
	}
	if got := c.Subgoals(); len(got) != 1 || got[0] != "break_tie_with_preferences" {
		t.Errorf("expected subgoal stack ['break_tie_with_preferences'], got %v", got)
	}
}

func TestRunDecisionCycle_UnequalCostBreaksUtilityTie(t *testing.T) {
	registry := NewOperatorRegistry()
	_ = registry.Register(&testOperator{name: "expensive", initialUtility: 0.8, cost: 2.0, apply: setSlot("ran", "expensive")})
	_ = registry.Register(&testOperator{name: "cheap", initialUtility: 0.8, cost: 0.5, apply: setSlot("ran", "cheap")})

	c := NewController(registry, Config{MaxElaborationCycles: 1, MaxSubgoals: 10, LearningRate: 0.1})
	result := c.RunDecisionCycle(WorkingMemory{Slots: map[string]any{}})

	if result.Impasse != nil {
		t.Fatalf("expected no impasse when cost breaks the utility tie, got %v", result.Impasse)
	}
	if result.SelectedOperator != "cheap" {
		t.Errorf("expected lowest-cost operator 'cheap' selected, got %q", result.SelectedOperator)
	}
}

func TestRunDecisionCycle_ApplyLeavingStateUnchangedRaisesStateNoChange(t *testing.T) {
	registry := NewOperatorRegistry()
	_ = registry.Register(&testOperator{
		name:           "noop",
		initialUtility: 0.5,
		apply:          func(s WorkingMemory) (WorkingMemory, bool) { return s, true },
	})

	c := NewController(registry, Config{MaxElaborationCycles: 1, MaxSubgoals: 10, LearningRate: 0.1})
	result := c.RunDecisionCycle(WorkingMemory{Slots: map[string]any{}})

	if result.Impasse == nil || result.Impasse.Type != StateNoChange {
		t.Fatalf("expected state_no_change impasse, got %v", result.Impasse)
	}
}

func TestRunDecisionCycle_SubgoalStackBoundedAndOverflowStopsResolution(t *testing.T) {
	registry := NewOperatorRegistry()
	_ = registry.Register(&testOperator{
		name:         "never",
		precondition: func(WorkingMemory) bool { return false },
	})

	c := NewController(registry, Config{MaxElaborationCycles: 20, MaxSubgoals: 3, LearningRate: 0.1})
	result := c.RunDecisionCycle(WorkingMemory{Slots: map[string]any{}})

	if len(c.Subgoals()) != 3 {
		t.Errorf("expected subgoal stack capped at 3, got %d", len(c.Subgoals()))
	}
	if result.Impasse == nil {
		t.Fatal("expected the final result to still report the unresolved impasse")
	}
	if result.Cycles >= 20 {
		t.Errorf("expected the cycle to stop early once the subgoal stack overflowed, got %d cycles", result.Cycles)
	}
}

func TestRunDecisionCycle_ReinforcementMovesUtilityTowardSuccessReward(t *testing.T) {
	registry := NewOperatorRegistry()
	_ = registry.Register(&testOperator{name: "op", initialUtility: 0.0, apply: setSlot("ran", true)})

	c := NewController(registry, Config{MaxElaborationCycles: 1, MaxSubgoals: 10, LearningRate: 0.1})
	c.RunDecisionCycle(WorkingMemory{Slots: map[string]any{}})

	// u <- u + alpha*(r - u) with u=0, alpha=0.1, r=+0.1 (success) -> 0.01.
	u := c.utilities["op"]
	if u <= 0.0 {
		t.Errorf("expected reinforcement to move utility toward the +0.1 success reward from 0, got %f", u)
	}
}

func TestRunDecisionCycle_LearnsChunkOnNonTrivialSuccess(t *testing.T) {
	registry := NewOperatorRegistry()
	_ = registry.Register(&testOperator{name: "op", initialUtility: 0.5, apply: setSlot("e", true)})

	c := NewController(registry, Config{MaxElaborationCycles: 1, MaxSubgoals: 10, LearningRate: 0.1, ChunkingEnabled: true})
	initial := WorkingMemory{Slots: map[string]any{"a": 1, "b": 2, "c": 3, "d": 4}}
	c.RunDecisionCycle(initial)

	if len(c.Chunks()) != 1 {
		t.Fatalf("expected one learned chunk, got %d", len(c.Chunks()))
	}
	if c.Chunks()[0].RecommendedOperator != "op" {
		t.Errorf("expected chunk to recommend 'op', got %s", c.Chunks()[0].RecommendedOperator)
	}
}

func TestRunDecisionCycle_ElaborateAppliesMatchingProductions(t *testing.T) {
	registry := NewOperatorRegistry()
	_ = registry.Register(&testOperator{
		name:         "finish",
		precondition: func(s WorkingMemory) bool { return s.Slots["derived"] == true },
		apply:        setSlot("done", true),
	})

	c := NewController(registry, Config{MaxElaborationCycles: 1, MaxSubgoals: 10, LearningRate: 0.1})
	c.AddProduction(Production{
		Name:  "derive",
		Match: func(s WorkingMemory) bool { return s.Slots["derived"] == nil },
		Action: func(s WorkingMemory) WorkingMemory {
			next := s.Clone()
			next.Slots["derived"] = true
			return next
		},
	})

	result := c.RunDecisionCycle(WorkingMemory{Slots: map[string]any{}})
	if result.SelectedOperator != "finish" {
		t.Errorf("expected elaboration to make 'finish' applicable, got %q selected", result.SelectedOperator)
	}
}
