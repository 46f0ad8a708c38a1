// Package environment outlines the interfaces and structs needed to
// implement concrete environments
package environment

import (
	"github.com/samuelfneumann/simsac/timestep"
	"gonum.org/v1/gonum/mat"
)

// Starter implements a distribution of starting states and samples starting
// states for environments
type Starter interface {
	Start() *mat.VecDense
}

// Ender determines when an episode should end. If the episode should
// end, End adjusts the argument TimeStep so that it is the last in the
// episode.
type Ender interface {
	End(*timestep.TimeStep) bool
}

// Task implements the reward scheme for taking actions in some
// environment, together with the distribution of starting states and
// the rules for ending episodes.
type Task interface {
	Starter
	Ender
	GetReward(state, action, nextState mat.Vector) float64
	AtGoal(state mat.Matrix) bool
}

// Environment implements a simulated environment
type Environment interface {
	Reset() (timestep.TimeStep, error)
	Step(action *mat.VecDense) (timestep.TimeStep, bool, error)
	CurrentTimeStep() timestep.TimeStep
	DiscountSpec() Spec
	ObservationSpec() Spec
	ActionSpec() Spec
}

// Renderer is an Environment that can render its current state
type Renderer interface {
	Render() error
}

// Closer is an Environment that holds resources which must be released
type Closer interface {
	Close() error
}

// Simulator is an Environment that exposes its own transition dynamics.
// Simulate returns the next observation and reward when taking action
// act from an observation obs, without changing the environment.
type Simulator interface {
	Simulate(obs, act []float64) ([]float64, float64)
}

// Close closes e if it holds resources, otherwise Close does nothing
func Close(e Environment) error {
	if c, ok := e.(Closer); ok {
		return c.Close()
	}
	return nil
}
