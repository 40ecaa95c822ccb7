package hrc

import (
	"log/slog"
	"reflect"
	"sort"

	"github.com/telos-systems/telos-core/internal/constants"
	"github.com/telos-systems/telos-core/internal/logging"
)

// Config configures a Controller.
type Config struct {
	MaxElaborationCycles int
	MaxSubgoals          int
	LearningRate         float64
	ChunkingEnabled      bool
	Logger               *slog.Logger
	DecisionLogger       *logging.DecisionLogger
}

// DefaultConfig returns the spec's default tuning.
func DefaultConfig() Config {
	return Config{
		MaxElaborationCycles: constants.DefaultMaxElaborationCycles,
		MaxSubgoals:          constants.DefaultMaxSubgoals,
		LearningRate:         constants.DefaultLearningRate,
		ChunkingEnabled:      true,
	}
}

// Controller runs the HRC decision cycle over a registry of operators and a
// set of elaboration productions.
type Controller struct {
	registry    *OperatorRegistry
	productions []Production
	utilities   map[string]float64
	subgoals    []string
	chunks      []Chunk

	cfg Config
}

// NewController creates a Controller. If cfg is the zero value, DefaultConfig
// is used.
func NewController(registry *OperatorRegistry, cfg Config) *Controller {
	if cfg.MaxElaborationCycles == 0 {
		cfg = DefaultConfig()
	}
	return &Controller{
		registry:  registry,
		utilities: make(map[string]float64),
		cfg:       cfg,
	}
}

// AddProduction registers an elaboration rule.
func (c *Controller) AddProduction(p Production) {
	c.productions = append(c.productions, p)
}

// Operators returns every operator registered with the controller, in
// registration order, for introspection tooling and tests that need to
// enumerate what's registered without reaching into the registry directly.
func (c *Controller) Operators() []Operator {
	return c.registry.All()
}

// Subgoals returns a snapshot of the current subgoal stack, for inspection
// and tests.
func (c *Controller) Subgoals() []string {
	out := make([]string, len(c.subgoals))
	copy(out, c.subgoals)
	return out
}

// Chunks returns the productions learned so far.
func (c *Controller) Chunks() []Chunk {
	out := make([]Chunk, len(c.chunks))
	copy(out, c.chunks)
	return out
}

// RunDecisionCycle runs the five-phase loop (elaborate, propose, select,
// apply, learn) up to cfg.MaxElaborationCycles times, returning the final
// state reached, the number of cycles actually run, the last unresolved
// impasse (if any), and the name of the last operator applied.
func (c *Controller) RunDecisionCycle(initial WorkingMemory) CycleResult {
	state := initial.Clone()
	if state.Slots == nil {
		state.Slots = make(map[string]any)
	}

	var lastImpasse *Impasse
	var selectedOperator string

	cycles := 0
	for ; cycles < c.cfg.MaxElaborationCycles; cycles++ {
		elaborated := c.elaborate(state)

		proposals := c.propose(elaborated)
		if len(proposals) == 0 {
			impasse, resolved := c.raiseImpasse(OperatorNoChange)
			lastImpasse = impasse
			state = elaborated
			if !resolved {
				break // subgoal stack exhausted; stop without resolution
			}
			continue
		}

		winner, tied := c.chooseOperator(proposals, elaborated)
		if tied {
			impasse, resolved := c.raiseImpasse(OperatorTie)
			lastImpasse = impasse
			state = elaborated
			if !resolved {
				break
			}
			continue
		}

		preApply := elaborated
		applied, success := winner.Operator.Apply(elaborated)

		if reflect.DeepEqual(applied.Slots, elaborated.Slots) {
			impasse, resolved := c.raiseImpasse(StateNoChange)
			lastImpasse = impasse
			state = elaborated
			if !resolved {
				break
			}
			continue
		}

		c.reinforce(winner.Operator.Name(), success)
		lastImpasse = nil
		selectedOperator = winner.Operator.Name()

		if c.cfg.ChunkingEnabled && success && len(preApply.Slots) >= constants.ChunkMinSlots {
			c.learnChunk(preApply, selectedOperator)
		}

		state = applied

		if c.cfg.DecisionLogger != nil {
			c.cfg.DecisionLogger.Log(map[string]any{
				"event":    "hrc_operator_applied",
				"operator": selectedOperator,
				"utility":  winner.Utility,
				"cycle":    cycles,
			})
		}
	}

	return CycleResult{
		FinalState:       state,
		Cycles:           cycles,
		Impasse:          lastImpasse,
		SelectedOperator: selectedOperator,
	}
}

// elaborate applies every matching production once (single pass, the
// spec's default over running to fixpoint).
func (c *Controller) elaborate(state WorkingMemory) WorkingMemory {
	next := state
	for _, p := range c.productions {
		if p.Match(next) {
			next = p.Action(next)
		}
	}
	return next
}

// propose emits a proposal, with computed utility, for every operator whose
// precondition holds.
func (c *Controller) propose(state WorkingMemory) []Proposal {
	var proposals []Proposal
	for _, op := range c.registry.All() {
		if !op.Precondition(state) {
			continue
		}
		proposals = append(proposals, Proposal{Operator: op, Utility: c.computeUtility(op, state)})
	}
	return proposals
}

// computeUtility applies the spec's utility function to an operator's
// learned base utility, seeding the learned value from InitialUtility on
// first encounter.
func (c *Controller) computeUtility(op Operator, state WorkingMemory) float64 {
	u, ok := c.utilities[op.Name()]
	if !ok {
		u = op.InitialUtility()
		c.utilities[op.Name()] = u
	}

	utility := u
	if state.TimePressure {
		utility -= 0.1 * op.Cost(state)
	}
	if op.ComplexCapable() && state.Complexity > 3 {
		utility += 0.1
	}
	return utility
}

// chooseOperator picks the proposal with maximum utility, tie-breaking by lowest
// cost. If utility and cost are both tied across more than one proposal,
// the tie is reported as unresolved per scenario CEP-003.
func (c *Controller) chooseOperator(proposals []Proposal, state WorkingMemory) (Proposal, bool) {
	sort.Slice(proposals, func(i, j int) bool {
		if proposals[i].Utility != proposals[j].Utility {
			return proposals[i].Utility > proposals[j].Utility
		}
		return proposals[i].Operator.Name() < proposals[j].Operator.Name()
	})

	top := proposals[0]
	var tiedByUtility []Proposal
	for _, p := range proposals {
		if p.Utility == top.Utility {
			tiedByUtility = append(tiedByUtility, p)
		}
	}
	if len(tiedByUtility) == 1 {
		return top, false
	}

	sort.Slice(tiedByUtility, func(i, j int) bool {
		return tiedByUtility[i].Operator.Cost(state) < tiedByUtility[j].Operator.Cost(state)
	})
	bestCost := tiedByUtility[0].Operator.Cost(state)
	var tiedByCost []Proposal
	for _, p := range tiedByUtility {
		if p.Operator.Cost(state) == bestCost {
			tiedByCost = append(tiedByCost, p)
		}
	}
	if len(tiedByCost) > 1 {
		return Proposal{}, true
	}
	return tiedByCost[0], false
}

// reinforce updates the learned utility for name by
// u <- u + alpha*(r - u), clamped to [0,1].
func (c *Controller) reinforce(name string, success bool) {
	reward := constants.FailureReward
	if success {
		reward = constants.SuccessReward
	}
	u := c.utilities[name]
	u += c.cfg.LearningRate * (reward - u)
	if u < 0 {
		u = 0
	}
	if u > 1 {
		u = 1
	}
	c.utilities[name] = u
}

// raiseImpasse reports an Impasse of type t, pushing a subgoal for its
// problem space if the stack has room. The second return is false once the
// subgoal stack is already at capacity: the impasse is still returned so
// the caller keeps reporting it, but it is left unresolved per §4.2 rather
// than pushed onto the stack again.
func (c *Controller) raiseImpasse(t ImpasseType) (*Impasse, bool) {
	space := problemSpaceFor(t)
	if len(c.subgoals) >= c.cfg.MaxSubgoals {
		return &Impasse{Type: t, ProblemSpace: space}, false
	}
	c.subgoals = append(c.subgoals, space)
	return &Impasse{Type: t, ProblemSpace: space}, true
}

// learnChunk synthesizes a production recommending operatorName whenever
// the state reaches preApply's signature again.
func (c *Controller) learnChunk(preApply WorkingMemory, operatorName string) {
	sig := stateSignature(preApply)
	c.chunks = append(c.chunks, Chunk{Signature: sig, RecommendedOperator: operatorName})
}

// stateSignature derives a deterministic fingerprint of a state's slot
// keys, used to match a learned chunk's condition.
func stateSignature(state WorkingMemory) string {
	keys := make([]string, 0, len(state.Slots))
	for k := range state.Slots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sig := ""
	for _, k := range keys {
		sig += k + ";"
	}
	return sig
}
