package planner

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/telos-systems/telos-core/internal/constants"
	"github.com/telos-systems/telos-core/internal/logging"
)

// Config configures a Planner.
type Config struct {
	Horizon        int
	Logger         *slog.Logger
	DecisionLogger *logging.DecisionLogger
}

// DefaultConfig returns the spec's default planning horizon.
func DefaultConfig() Config {
	return Config{Horizon: constants.DefaultPlanningHorizon}
}

// Planner scores candidate policies against a WorldModel by Expected Free
// Energy and returns the minimum-EFE policy.
type Planner struct {
	world *WorldModel
	cfg   Config
}

// NewPlanner creates a Planner over world. If cfg is the zero value,
// DefaultConfig is used.
func NewPlanner(world *WorldModel, cfg Config) *Planner {
	if cfg.Horizon == 0 {
		cfg = DefaultConfig()
	}
	return &Planner{world: world, cfg: cfg}
}

// PlanWithActiveInference implements the contract
// planWithActiveInference(goal, current_state, constraints).
func (p *Planner) PlanWithActiveInference(goal Goal, current State, constraints Constraints) (PlanResult, error) {
	p.world.mu.RLock()
	defer p.world.mu.RUnlock()

	seeded := current.clone()
	if _, ok := seeded["complexity"]; !ok {
		seeded["complexity"] = goal.Complexity
	}

	candidates := p.candidatePolicies(goal, seeded, constraints)
	if len(candidates) == 0 {
		return PlanResult{}, fmt.Errorf("planner: no applicable actions for current state")
	}

	var best PlanResult
	found := false
	for _, policy := range candidates {
		efe, predicted := p.evaluatePolicy(policy, seeded)
		if !found || efe < best.ExpectedFreeEnergy {
			best = PlanResult{Policy: policy, ExpectedFreeEnergy: efe, PredictedOutcome: predicted}
			found = true
		}
	}

	best.Confidence = confidenceFor(best.ExpectedFreeEnergy, len(best.Policy))

	if p.cfg.DecisionLogger != nil {
		p.cfg.DecisionLogger.Log(map[string]any{
			"event":                 "planner_policy_selected",
			"policy":                best.Policy,
			"expected_free_energy":  best.ExpectedFreeEnergy,
			"confidence":            best.Confidence,
		})
	}

	return best, nil
}

// candidatePolicies generates the domain's single-action policies, two-action
// (info-gather -> apply) compositions when warranted, and the two
// context-specific heuristic compositions, each filtered by applicability
// and deduplicated.
func (p *Planner) candidatePolicies(goal Goal, state State, constraints Constraints) [][]string {
	applicable := func(name string) bool {
		a := p.world.actions[name]
		return a != nil && a.Applicable(state, constraints)
	}

	seen := make(map[string]bool)
	var out [][]string
	add := func(policy []string) {
		for _, name := range policy {
			if !applicable(name) {
				return
			}
		}
		key := strings.Join(policy, ">")
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, policy)
	}

	for _, name := range p.world.order {
		add([]string{name})
	}

	if goal.Complexity > 0.6 || constraints.RequirePlanning {
		for _, infoName := range p.world.order {
			info := p.world.actions[infoName]
			if info == nil || !info.Epistemic {
				continue
			}
			for _, applyName := range p.world.order {
				apply := p.world.actions[applyName]
				if apply == nil || apply.Epistemic {
					continue
				}
				add([]string{infoName, applyName})
			}
		}
	}

	if state.get("uncertainty_level", 0) > 0.7 {
		add([]string{ActionGatherInformation, ActionFocusAttention})
	}
	if state.get("working_memory_load", 0) > 0.7 {
		add([]string{ActionReduceComplexity, ActionApplyStrategy})
	}

	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) < len(out[j]) })
	return out
}

// evaluatePolicy simulates policy forward from initial and returns its total
// EFE (expected surprise minus epistemic value) and the predicted state
// after the final step. It is a pure function of the world model's current
// snapshot and the input state.
func (p *Planner) evaluatePolicy(policy []string, initial State) (float64, State) {
	state := initial
	totalSurprise := 0.0
	totalEntropy := 0.0

	for _, name := range policy {
		action := p.world.actions[name]
		probs := action.outcomeProbabilities()
		totalSurprise += expectedSurprise(probs, state)
		totalEntropy += shannonEntropy(probs)
		state = p.applyExpectedTransition(state, action, probs)
	}

	bonus := p.epistemicBonus(policy, initial, totalEntropy)
	return totalSurprise - bonus, state
}

// expectedSurprise accumulates Sigma p*(-log10(p)) over outcomes, with the
// spec's two modulation rules: x1.5 when the state entering the step has
// uncertainty_level > 0.7, and an additional x2.0 on the cognitive-overload
// term when working_memory_load < 0.3 (an overload is more surprising when
// load was not already elevated).
func expectedSurprise(probs map[Outcome]float64, state State) float64 {
	total := 0.0
	for _, o := range outcomeOrder {
		p := probs[o]
		if p <= 0 {
			continue
		}
		term := p * (-math.Log10(p))
		if o == OutcomeCognitiveOverload && state.get("working_memory_load", 0) < 0.3 {
			term *= 2.0
		}
		total += term
	}
	if state.get("uncertainty_level", 0) > 0.7 {
		total *= 1.5
	}
	return total
}

// shannonEntropy computes -Sigma p*ln(p) over an outcome distribution.
func shannonEntropy(probs map[Outcome]float64) float64 {
	h := 0.0
	for _, o := range outcomeOrder {
		p := probs[o]
		if p <= 0 {
			continue
		}
		h -= p * math.Log(p)
	}
	return h
}

// applyExpectedTransition folds an action's probability-weighted direct
// effects into state, adds indirect effects via the causal graph damped by
// IndirectEffectDamping, and clamps every variable to its declared range.
func (p *Planner) applyExpectedTransition(state State, action *ActionModel, probs map[Outcome]float64) State {
	direct := make(map[string]float64)
	for o, prob := range probs {
		if prob <= 0 {
			continue
		}
		for _, eff := range action.effects[o] {
			direct[eff.Variable] += prob * eff.Delta
		}
	}

	totals := make(map[string]float64, len(direct))
	for variable, delta := range direct {
		totals[variable] += delta
	}
	for variable, delta := range direct {
		for _, edge := range p.world.edgesFrom(variable) {
			totals[edge.Effect] += edge.Strength * delta * constants.IndirectEffectDamping
		}
	}

	next := state.clone()
	for variable, delta := range totals {
		next[variable] = next.get(variable, 0) + delta
	}
	return clampState(next)
}

// epistemicBonus scales the policy's action-type and extra-step bonuses by
// current uncertainty plus the uncertainty reduction the rollout's outcome
// entropy forecasts.
func (p *Planner) epistemicBonus(policy []string, initial State, totalEntropy float64) float64 {
	bonus := 0.0
	for _, name := range policy {
		action := p.world.actions[name]
		if action.Epistemic {
			bonus += 0.3
		}
		if action.Learning {
			bonus += 0.2
		}
	}
	if len(policy) > 1 {
		bonus += 0.1 * float64(len(policy)-1)
	}
	if bonus == 0 {
		return 0
	}

	maxEntropy := math.Log(float64(len(outcomeOrder)))
	reduction := 0.0
	if maxEntropy > 0 && len(policy) > 0 {
		reduction = clamp(totalEntropy/(float64(len(policy))*maxEntropy), 0, 1)
	}

	return bonus * (initial.get("uncertainty_level", 0) + reduction)
}

// confidenceFor implements the spec's confidence scoring: 0.5 base, +0.3 if
// EFE < 0.1, +0.2 if EFE < 0.05, +0.1 for policies of length <= 2, -0.1 for
// length > 4, clamped to [0,1].
func confidenceFor(efe float64, length int) float64 {
	conf := 0.5
	if efe < 0.1 {
		conf += 0.3
	}
	if efe < 0.05 {
		conf += 0.2
	}
	if length <= 2 {
		conf += 0.1
	}
	if length > 4 {
		conf -= 0.1
	}
	return clamp(conf, 0, 1)
}

// varRanges declares the clamp range for known state variables; any
// variable not listed defaults to [0,1] (every variable in the domain is a
// normalized score).
var varRanges = map[string][2]float64{
	"uncertainty_level":  {0, 1},
	"working_memory_load": {0, 1},
	"goal_progress":      {0, 1},
	"complexity":         {0, 1},
	"attention_focus":    {0, 1},
	"information_level":  {0, 1},
}

func clampState(s State) State {
	out := make(State, len(s))
	for k, v := range s {
		r, ok := varRanges[k]
		if !ok {
			r = [2]float64{0, 1}
		}
		out[k] = clamp(v, r[0], r[1])
	}
	return out
}
