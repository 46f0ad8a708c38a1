package solver

import G "gorgonia.org/gorgonia"

// Step holds the hyperparameters shared by all solvers
type Step struct {
	StepSize float64
	Batch    int
	Clip     float64 // gradient clipping, <= 0 disables clipping
}

func (s Step) opts() []G.SolverOpt {
	opts := []G.SolverOpt{
		G.WithLearnRate(s.StepSize),
		G.WithBatchSize(float64(s.Batch)),
	}
	if s.Clip > 0 {
		opts = append(opts, G.WithClip(s.Clip))
	}
	return opts
}

// AdamConfig describes an Adam solver
type AdamConfig struct {
	Step
	Epsilon float64
	Beta1   float64
	Beta2   float64
}

// NewAdam returns a new Adam Solver
func NewAdam(s Step, epsilon, beta1, beta2 float64) (*Solver, error) {
	return newSolver(Adam, AdamConfig{
		Step:    s,
		Epsilon: epsilon,
		Beta1:   beta1,
		Beta2:   beta2,
	})
}

// Create implements the Config interface
func (a AdamConfig) Create() G.Solver {
	opts := append(a.opts(), G.WithEps(a.Epsilon), G.WithBeta1(a.Beta1),
		G.WithBeta2(a.Beta2))
	return G.NewAdamSolver(opts...)
}

// ValidType implements the Config interface
func (a AdamConfig) ValidType(t Type) bool {
	return t == Adam
}

// RMSPropConfig describes an RMSProp solver
type RMSPropConfig struct {
	Step
	Epsilon float64
	Rho     float64 // decay of the squared gradient average
}

// NewRMSProp returns a new RMSProp Solver
func NewRMSProp(s Step, epsilon, rho float64) (*Solver, error) {
	return newSolver(RMSProp, RMSPropConfig{
		Step:    s,
		Epsilon: epsilon,
		Rho:     rho,
	})
}

// Create implements the Config interface
func (r RMSPropConfig) Create() G.Solver {
	opts := append(r.opts(), G.WithEps(r.Epsilon), G.WithRho(r.Rho))
	return G.NewRMSPropSolver(opts...)
}

// ValidType implements the Config interface
func (r RMSPropConfig) ValidType(t Type) bool {
	return t == RMSProp
}

// VanillaConfig describes a stochastic gradient descent solver
type VanillaConfig struct {
	Step
}

// NewVanilla returns a new Vanilla Solver
func NewVanilla(s Step) (*Solver, error) {
	return newSolver(Vanilla, VanillaConfig{Step: s})
}

// Create implements the Config interface
func (v VanillaConfig) Create() G.Solver {
	return G.NewVanillaSolver(v.opts()...)
}

// ValidType implements the Config interface
func (v VanillaConfig) ValidType(t Type) bool {
	return t == Vanilla
}
