// Package gym provides access to OpenAI's Gym environments.
//
// Environments run with their default tasks and episode cutoffs. GoGym
// does not distinguish episode cutoffs from terminal states, so every
// episode ends with a timestep.Terminal EndType.
//
// This is made possible through the Go bindings for OpenAI Gym,
// found at https://github.com/samuelfneumann/GoGym. Importing the
// package registers it as the envconfig Backend.
package gym

import (
	"fmt"

	"github.com/samuelfneumann/gogym"
	env "github.com/samuelfneumann/simsac/environment"
	"github.com/samuelfneumann/simsac/environment/envconfig"
	ts "github.com/samuelfneumann/simsac/timestep"
	"gonum.org/v1/gonum/mat"
)

func init() {
	envconfig.RegisterBackend(func(task string, discount float64,
		seed uint64) (env.Environment, error) {
		gymEnv, _, err := New(task, discount, seed)
		if err != nil {
			return nil, err
		}
		return gymEnv, nil
	})
}

// GymEnv implements access to an OpenAI Gym environment using GoGym
type GymEnv struct {
	gogym.Environment

	name        string
	currentStep ts.TimeStep
	discount    float64
}

// New returns a new GymEnv with the given name, which must be a legal
// name from the OpenAI Gym suite.
func New(name string, discount float64, seed uint64) (*GymEnv,
	ts.TimeStep, error) {
	goGymEnv, err := gogym.Make(name)
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: could not create "+
			"environment %v: %v", name, err)
	}

	goGymEnv.Seed(int(seed))
	gymEnv := &GymEnv{
		Environment: goGymEnv,
		name:        name,
		discount:    discount,
	}

	t, err := gymEnv.Reset()
	if err != nil {
		return nil, ts.TimeStep{}, fmt.Errorf("new: %v", err)
	}

	return gymEnv, t, nil
}

// Step takes a single environmental step
func (g *GymEnv) Step(a *mat.VecDense) (ts.TimeStep, bool, error) {
	obs, reward, done, err := g.Environment.Step(a)
	if err != nil {
		return ts.TimeStep{}, true, fmt.Errorf("step: could not step "+
			"GoGym environment: %v", err)
	}

	t := ts.New(ts.Mid, reward, g.discount, obs, g.CurrentTimeStep().Number+1)
	if done {
		t.End(ts.Terminal)
	}
	g.currentStep = t

	return t, done, nil
}

// Reset resets the environment to some starting state
func (g *GymEnv) Reset() (ts.TimeStep, error) {
	obs, err := g.Environment.Reset()
	if err != nil {
		return ts.TimeStep{}, fmt.Errorf("reset: could not reset "+
			"environment: %v", err)
	}

	t := ts.New(ts.First, 0, g.discount, obs, 0)
	g.currentStep = t

	return t, nil
}

// CurrentTimeStep returns the current timestep in the environment
func (g *GymEnv) CurrentTimeStep() ts.TimeStep {
	return g.currentStep
}

// ObservationSpec returns the observation spec of the environment
func (g *GymEnv) ObservationSpec() env.Spec {
	return spaceSpec(env.Observation, g.ObservationSpace())
}

// ActionSpec returns the action specification of the environment
func (g *GymEnv) ActionSpec() env.Spec {
	return spaceSpec(env.Action, g.ActionSpace())
}

// bounded is a GoGym space with bounds
type bounded interface {
	Low() []*mat.VecDense
	High() []*mat.VecDense
}

// spaceSpec returns the Spec of a GoGym BoxSpace or DiscreteSpace, and
// panics for any other space
func spaceSpec(t env.SpecType, space bounded) env.Spec {
	switch space.(type) {
	case *gogym.BoxSpace, *gogym.DiscreteSpace:
		low, high := space.Low()[0], space.High()[0]
		return env.NewSpec(t, low.RawVector().Data, high.RawVector().Data)
	}
	panic(fmt.Sprintf("spaceSpec: invalid %v space type %T, package gym "+
		"supports only GoGym's BoxSpace or DiscreteSpace", t, space))
}

// DiscountSpec returns the discount specification of the environment
func (g *GymEnv) DiscountSpec() env.Spec {
	bound := []float64{g.discount}
	return env.NewSpec(env.Discount, bound, bound)
}

// Close performs resource cleanup after the environment is no longer
// needed
func (g *GymEnv) Close() error {
	g.Environment.Close()
	return nil
}

// String returns the name of the environment
func (g *GymEnv) String() string {
	return fmt.Sprintf("GymEnv(%v)", g.name)
}

// Shutdown finalises the Python interpreter used by all GymEnvs. No
// GymEnv can be used after Shutdown is called.
func Shutdown() {
	gogym.Close()
}
