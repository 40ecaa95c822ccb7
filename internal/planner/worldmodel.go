package planner

import (
	"sync"

	"github.com/telos-systems/telos-core/internal/constants"
)

// ActionModel is one named action in the world model's transition domain.
type ActionModel struct {
	Name string

	// Epistemic marks info-gathering actions, earning a 0.3 epistemic bonus.
	Epistemic bool

	// Learning marks learning actions, earning a 0.2 epistemic bonus and
	// filtered out under time pressure.
	Learning bool

	// Complex marks actions unavailable once working_memory_load exceeds
	// 0.9, regardless of any other precondition.
	Complex bool

	// NoOp reports whether the action would be a no-op in state (already
	// focused, already well-informed, complexity already minimal, ...).
	// A nil NoOp is never a no-op.
	NoOp func(state State) bool

	probabilities map[Outcome]float64
	effects       map[Outcome][]Effect
}

// Applicable applies the spec's applicability filters: complex actions are
// unavailable at load > 0.9, learning actions are unavailable under time
// pressure, and an action-specific no-op check removes actions that would
// have no effect on the current state.
func (a *ActionModel) Applicable(state State, constraints Constraints) bool {
	if a.Complex && state.get("working_memory_load", 0) > 0.9 {
		return false
	}
	if a.Learning && constraints.TimePressure {
		return false
	}
	if a.NoOp != nil && a.NoOp(state) {
		return false
	}
	return true
}

// outcomeProbabilities returns a copy of the action's current (possibly
// learned) outcome distribution.
func (a *ActionModel) outcomeProbabilities() map[Outcome]float64 {
	out := make(map[Outcome]float64, len(a.probabilities))
	for o, p := range a.probabilities {
		out[o] = p
	}
	return out
}

// WorldModel holds the domain of actions, the causal graph learned from
// observed cause/effect pairs, and observation-model precision. Planning
// reads the model; learning writes it, guarded by a read-write lock per the
// concurrency model's "planning reads, learning writes" policy.
type WorldModel struct {
	mu sync.RWMutex

	actions map[string]*ActionModel
	order   []string

	causal    map[string]*CausalEdge
	precision float64

	history []LearningRecord
}

// NewWorldModel creates an empty world model with default observation
// precision (the midpoint of the learned range).
func NewWorldModel() *WorldModel {
	return &WorldModel{
		actions:   make(map[string]*ActionModel),
		causal:    make(map[string]*CausalEdge),
		precision: (constants.MinPrecision + constants.MaxPrecision) / 2,
	}
}

// RegisterAction adds an action to the domain. Registering the same name
// twice replaces the prior registration.
func (w *WorldModel) RegisterAction(a *ActionModel) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.actions[a.Name]; !exists {
		w.order = append(w.order, a.Name)
	}
	w.actions[a.Name] = a
}

// Action returns the registered action by name, or nil.
func (w *WorldModel) Action(name string) *ActionModel {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.actions[name]
}

// Actions returns every registered action in registration order.
func (w *WorldModel) Actions() []*ActionModel {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*ActionModel, len(w.order))
	for i, name := range w.order {
		out[i] = w.actions[name]
	}
	return out
}

// Precision returns the current observation-model precision.
func (w *WorldModel) Precision() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.precision
}

// CausalEdges returns a snapshot of the learned causal graph.
func (w *WorldModel) CausalEdges() []CausalEdge {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]CausalEdge, 0, len(w.causal))
	for _, e := range w.causal {
		out = append(out, *e)
	}
	return out
}

// edgesFrom returns the causal edges whose cause is variable. Callers must
// hold at least a read lock; PlanWithActiveInference holds the world
// model's read lock for the whole forward simulation.
func (w *WorldModel) edgesFrom(variable string) []*CausalEdge {
	var out []*CausalEdge
	for _, e := range w.causal {
		if e.Cause == variable {
			out = append(out, e)
		}
	}
	return out
}

// History returns a snapshot of the bounded learning history.
func (w *WorldModel) History() []LearningRecord {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]LearningRecord, len(w.history))
	copy(out, w.history)
	return out
}

// LearnFromOutcome updates transition probabilities, modelled effect
// magnitudes, the causal graph, and observation precision from one observed
// (action, outcome).
func (w *WorldModel) LearnFromOutcome(rec LearningRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()

	action, ok := w.actions[rec.Action]
	if ok {
		target := 0.0
		if rec.Outcome == OutcomeSuccess {
			target = 1.0
		}
		p := action.probabilities[rec.Outcome]
		p += constants.TransitionLearningRate * (target - p)
		p = clamp(p, constants.MinTransitionProbability, constants.MaxTransitionProbability)
		action.probabilities[rec.Outcome] = p

		for variable, observed := range rec.Magnitudes {
			effects := action.effects[rec.Outcome]
			for i := range effects {
				if effects[i].Variable == variable {
					effects[i].Delta += constants.TransitionLearningRate * (observed - effects[i].Delta)
				}
			}
		}
	}

	for _, obs := range rec.Causal {
		key := obs.Cause + "->" + obs.Effect + "@" + obs.DelayKey
		edge, exists := w.causal[key]
		if !exists {
			edge = &CausalEdge{Cause: obs.Cause, Effect: obs.Effect}
			w.causal[key] = edge
		}
		edge.Strength += constants.CausalLearningRate * (obs.Strength - edge.Strength)
		edge.Observations++
	}

	const smallError = 0.1
	if rec.PredictionError < smallError {
		w.precision = clamp(w.precision+0.05, constants.MinPrecision, constants.MaxPrecision)
	} else {
		w.precision = clamp(w.precision-0.05, constants.MinPrecision, constants.MaxPrecision)
	}

	w.history = append(w.history, rec)
	if len(w.history) > constants.MaxLearningHistory {
		w.history = w.history[constants.LearningHistoryTrim:]
	}
}
