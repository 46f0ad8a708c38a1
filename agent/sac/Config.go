package sac

import (
	"github.com/pkg/errors"
	"github.com/samuelfneumann/simsac/initwfn"
	"github.com/samuelfneumann/simsac/solver"
	"github.com/samuelfneumann/simsac/worldmodel"
)

// Config implements a configuration for an SSAC agent
type Config struct {
	ObsDim int
	ActDim int

	// Actions are squashed into [ActionLow, ActionHigh] in every
	// dimension
	ActionLow  float64
	ActionHigh float64

	Hidden []int // Layer sizes of the actor and critic bodies

	ActorLR  float64
	CriticLR float64
	Solver   solver.Type
	Init     *initwfn.InitWFn

	Gamma float64
	Tau   float64 // Polyak averaging constant
	Alpha float64 // Entropy temperature

	NStep      int
	RewNorm    bool
	IgnoreDone bool

	BatchSize int

	// Model is the world model used to simulate transitions, nil for
	// plain SAC
	Model worldmodel.Model

	// The world model is trained TrainSimulatorStep times per update
	// on batches of SimulatorBatchSize real transitions
	TrainSimulatorStep int
	SimulatorBatchSize int

	// From update MaxUpdateStep on, each update simulates
	// NSimulatorStep transitions into a model buffer of capacity
	// ModelBufferSize, and a ModelRatio share of each batch is drawn
	// from the model buffer
	MaxUpdateStep   int
	NSimulatorStep  int
	ModelRatio      float64
	ModelBufferSize int

	Seed uint64
}

// Validate checks a Config to ensure it is a valid configuration of an
// SSAC agent.
func (c Config) Validate() error {
	if c.ObsDim <= 0 || c.ActDim <= 0 {
		return errors.Errorf("observation and action dimensions must be "+
			"positive, have (%v, %v)", c.ObsDim, c.ActDim)
	}
	if c.ActionHigh <= c.ActionLow {
		return errors.Errorf("invalid action range [%v, %v]", c.ActionLow,
			c.ActionHigh)
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("batch size must be positive, have %v",
			c.BatchSize)
	}
	if c.ActorLR <= 0 || c.CriticLR <= 0 {
		return errors.New("learning rates must be positive")
	}
	if c.Tau <= 0 || c.Tau > 1 {
		return errors.Errorf("tau must be in (0, 1], have %v", c.Tau)
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return errors.Errorf("gamma must be in [0, 1], have %v", c.Gamma)
	}
	if c.NStep < 1 {
		return errors.Errorf("n-step must be >= 1, have %v", c.NStep)
	}
	if c.Init == nil {
		return errors.New("no weight initializer")
	}
	if c.Model != nil {
		if c.NSimulatorStep <= 0 || c.ModelBufferSize <= 0 {
			return errors.New("simulated steps and model buffer size must " +
				"be positive when using a world model")
		}
		if c.ModelRatio < 0 || c.ModelRatio >= 1 {
			return errors.Errorf("model ratio must be in [0, 1), have %v",
				c.ModelRatio)
		}
		if c.TrainSimulatorStep > 0 && c.SimulatorBatchSize <= 0 {
			return errors.New("simulator batch size must be positive")
		}
	}
	return nil
}

// scale returns the scale and bias that map [-1, 1] to the action range
func (c Config) scale() (float64, float64) {
	return (c.ActionHigh - c.ActionLow) / 2, (c.ActionHigh + c.ActionLow) / 2
}
