// Package solver wraps Gorgonia Solvers so that they can be created by
// name with their hyperparameters attached.
package solver

import (
	"fmt"

	G "gorgonia.org/gorgonia"
)

// Type describes different types of solvers that are available
type Type string

// Available solver types
const (
	Adam    Type = "Adam"
	RMSProp Type = "RMSProp"
	Vanilla Type = "Vanilla"
)

// Solver wraps a Gorgonia Solver together with the configuration that
// created it
type Solver struct {
	G.Solver
	Type
	Config
}

// New returns a new solver of type t with the default hyperparameters
// of PyTorch for the given step size and batch size
func New(t Type, stepSize float64, batchSize int) (*Solver, error) {
	s := Step{StepSize: stepSize, Batch: batchSize}
	switch t {
	case Adam:
		return NewAdam(s, 1e-8, 0.9, 0.999)
	case RMSProp:
		return NewRMSProp(s, 1e-8, 0.99)
	case Vanilla:
		return NewVanilla(s)
	}
	return nil, fmt.Errorf("new: no such solver type %v", t)
}

// newSolver returns a new solver with the given type and configuration.
func newSolver(t Type, c Config) (*Solver, error) {
	if !c.ValidType(t) {
		return nil, fmt.Errorf("newSolver: invalid solver type %v for "+
			"configuration %T", t, c)
	}
	solver := Solver{Type: t, Config: c}
	solver.Solver = solver.Config.Create()

	return &solver, nil
}

// Clone returns a new Solver with the same configuration but fresh
// internal state. Each set of learnables needs its own Solver, since
// Gorgonia Solvers cache per-weight state.
func (s *Solver) Clone() *Solver {
	return &Solver{
		Solver: s.Config.Create(),
		Type:   s.Type,
		Config: s.Config,
	}
}

// Config implements a Gorgonia Solver configuration and can be used to
// create Gorgonia Solvers they describe.
type Config interface {
	Create() G.Solver

	// ValidType returns whether a specific Solver type can be created
	// with the Config
	ValidType(Type) bool
}
