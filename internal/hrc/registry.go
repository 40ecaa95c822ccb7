package hrc

import "fmt"

// OperatorRegistry holds the operators a controller may propose. Operators
// are registered once at startup; the registry itself does not mutate
// after construction.
type OperatorRegistry struct {
	byName map[string]Operator
	order  []string // registration order, used for deterministic iteration
}

// NewOperatorRegistry creates an empty registry.
func NewOperatorRegistry() *OperatorRegistry {
	return &OperatorRegistry{byName: make(map[string]Operator)}
}

// Register adds op to the registry. Registering a name twice is an error:
// the controller's tie-breaking and learned-utility table both key off a
// unique operator name.
func (r *OperatorRegistry) Register(op Operator) error {
	if _, exists := r.byName[op.Name()]; exists {
		return fmt.Errorf("operator already registered: %s", op.Name())
	}
	r.byName[op.Name()] = op
	r.order = append(r.order, op.Name())
	return nil
}

// All returns every registered operator in registration order.
func (r *OperatorRegistry) All() []Operator {
	ops := make([]Operator, len(r.order))
	for i, name := range r.order {
		ops[i] = r.byName[name]
	}
	return ops
}

// Len reports the number of registered operators.
func (r *OperatorRegistry) Len() int {
	return len(r.order)
}
