// Package pendulum implements the pendulum classic control environment
package pendulum

import (
	"fmt"
	"math"
	"os"

	"github.com/samuelfneumann/simsac/environment"
	"github.com/samuelfneumann/simsac/timestep"
	"github.com/samuelfneumann/simsac/utils/floatutils"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

// default physical constants
const (
	AngleBound  float64 = math.Pi // +/- Angle bounds
	SpeedBound  float64 = 8.0     // +/- Speed bounds
	TorqueBound float64 = 2.0     // +/- Torque bounds

	MaxContinuousAction float64 = TorqueBound
	MinContinuousAction float64 = -MaxContinuousAction

	dt              float64 = 0.05
	Gravity         float64 = 10.0
	Mass            float64 = 1.0
	Length          float64 = 1.0
	ActionDims      int     = 1
	ObservationDims int     = 3

	// RewardThreshold is the average return at which the task is
	// considered solved
	RewardThreshold float64 = -250
)

// Pendulum implements the classic control environment Pendulum. In this
// environment, a pendulum is attached to a fixed base. An agent can
// swing the pendulum back and forth, but the swinging force/torque is
// underpowered. In order to be able to swing the pendulum straight up,
// it must first be rocked back and forth, using the momentum to
// gradually climb higher until the pendulum can point straight up.
//
// The underlying state is the angle of the pendulum from the positive
// y-axis, θ, and its angular velocity θ̇. Observations are
// [cos(θ), sin(θ), θ̇]. The angular velocity is clipped to
// [-SpeedBound, SpeedBound].
//
// Actions are continuous and 1-dimensional. Actions determine the
// torque to apply to the pendulum at its fixed base. Actions outside
// of [MinContinuousAction, MaxContinuousAction] are clipped.
//
// Pendulum implements the environment.Environment and
// environment.Simulator interfaces.
type Pendulum struct {
	environment.Task
	dt           float64
	gravity      float64
	mass         float64
	length       float64
	speedBounds  r1.Interval
	torqueBounds r1.Interval
	discount     float64

	// state is the underlying [θ, θ̇] state
	state    *mat.VecDense
	lastStep timestep.TimeStep
}

// New creates and returns a new Pendulum environment
func New(t environment.Task, discount float64) (*Pendulum,
	timestep.TimeStep, error) {
	p := &Pendulum{
		Task:         t,
		dt:           dt,
		gravity:      Gravity,
		mass:         Mass,
		length:       Length,
		speedBounds:  r1.Interval{Min: -SpeedBound, Max: SpeedBound},
		torqueBounds: r1.Interval{Min: -TorqueBound, Max: TorqueBound},
		discount:     discount,
	}

	step, err := p.Reset()
	if err != nil {
		return nil, timestep.TimeStep{}, fmt.Errorf("new: %v", err)
	}
	return p, step, nil
}

// Reset resets the environment and returns a starting state drawn from the
// Starter
func (p *Pendulum) Reset() (timestep.TimeStep, error) {
	state := p.Start()
	if err := validateState(state, p.speedBounds); err != nil {
		return timestep.TimeStep{}, fmt.Errorf("reset: %v", err)
	}
	state.SetVec(0, normalizeAngle(state.AtVec(0)))
	p.state = state

	startStep := timestep.New(timestep.First, 0, p.discount,
		observation(state.AtVec(0), state.AtVec(1)), 0)
	p.lastStep = startStep

	return startStep, nil
}

// Step takes one environmental step given action a and returns the next
// timestep as a timestep.TimeStep and a bool indicating whether or not
// the episode has ended.
func (p *Pendulum) Step(action *mat.VecDense) (timestep.TimeStep, bool,
	error) {
	if action.Len() != ActionDims {
		return timestep.TimeStep{}, true, fmt.Errorf("step: invalid action "+
			"dimensions \n\twant(%v) \n\thave(%v)", ActionDims, action.Len())
	}

	torque := floatutils.ClipInterval(action.AtVec(0), p.torqueBounds)
	th, thdot := p.state.AtVec(0), p.state.AtVec(1)
	newth, newthdot := p.nextState(th, thdot, torque)
	nextState := mat.NewVecDense(2, []float64{newth, newthdot})

	reward := p.GetReward(p.state, mat.NewVecDense(1, []float64{torque}),
		nextState)
	p.state = nextState

	nextStep := timestep.New(timestep.Mid, reward, p.discount,
		observation(newth, newthdot), p.lastStep.Number+1)
	p.End(&nextStep)
	p.lastStep = nextStep

	return nextStep, nextStep.Last(), nil
}

// Simulate returns the next observation and reward of taking action
// act in the state described by observation obs. The environment
// itself is unaffected.
func (p *Pendulum) Simulate(obs, act []float64) ([]float64, float64) {
	th := math.Atan2(obs[1], obs[0])
	thdot := obs[2]
	torque := floatutils.ClipInterval(act[0], p.torqueBounds)

	newth, newthdot := p.nextState(th, thdot, torque)
	reward := p.GetReward(mat.NewVecDense(2, []float64{th, thdot}),
		mat.NewVecDense(1, []float64{torque}),
		mat.NewVecDense(2, []float64{newth, newthdot}))

	return observation(newth, newthdot).RawVector().Data, reward
}

// nextState computes the next [θ, θ̇] state given a current state and
// an amount of torque to apply to the fixed base of the pendulum.
func (p *Pendulum) nextState(th, thdot, torque float64) (float64, float64) {
	newthdot := thdot + (-3*p.gravity/(2*p.length)*math.Sin(th+math.Pi)+
		3.0/(p.mass*math.Pow(p.length, 2))*torque)*p.dt
	newthdot = floatutils.ClipInterval(newthdot, p.speedBounds)
	newth := th + newthdot*p.dt

	return normalizeAngle(newth), newthdot
}

// CurrentTimeStep returns the last TimeStep that occurred in the
// environment
func (p *Pendulum) CurrentTimeStep() timestep.TimeStep {
	return p.lastStep
}

// DiscountSpec returns the discount specification of the environment
func (p *Pendulum) DiscountSpec() environment.Spec {
	bound := []float64{p.discount}
	return environment.NewSpec(environment.Discount, bound, bound)
}

// ObservationSpec returns the observation specification of the environment
func (p *Pendulum) ObservationSpec() environment.Spec {
	return environment.NewSpec(environment.Observation,
		[]float64{-1, -1, p.speedBounds.Min},
		[]float64{1, 1, p.speedBounds.Max})
}

// ActionSpec returns the action specification of the environment
func (p *Pendulum) ActionSpec() environment.Spec {
	return environment.NewSpec(environment.Action,
		[]float64{p.torqueBounds.Min}, []float64{p.torqueBounds.Max})
}

// String converts the environment to a string representation
func (p *Pendulum) String() string {
	str := "Pendulum  |  theta: %v  |  theta dot: %v\n"
	return fmt.Sprintf(str, p.state.AtVec(0), p.state.AtVec(1))
}

// Render renders the current timestep to the terminal
func (p *Pendulum) Render() error {
	angle := p.state.AtVec(0)
	var frame string

	switch {
	case angle > -math.Pi/8 && angle < math.Pi/8:
		frame = "  | \n  ."
	case angle >= math.Pi/8 && angle < (3*math.Pi/8):
		frame = "   / \n  ."
	case angle >= (3*math.Pi/8) && angle < (5*math.Pi/8):
		frame = "  .--\n"
	case angle >= (5*math.Pi/8) && angle < (7*math.Pi/8):
		frame = "  . \n   \\"
	case angle >= (7*math.Pi/8) || angle <= (-7*math.Pi/8):
		frame = "  . \n  |"
	case angle > (-7*math.Pi/8) && angle <= (-5*math.Pi/8):
		frame = "  . \n/"
	case angle > (-5*math.Pi/8) && angle <= (-3*math.Pi/8):
		frame = "--.\n"
	default:
		frame = "\\ \n  ."
	}

	if _, err := os.Stdout.WriteString("\x1b[3;J\x1b[H\x1b[2J"); err != nil {
		return fmt.Errorf("render: %v", err)
	}
	_, err := fmt.Printf("\n\n%s\n\n", frame)
	return err
}

// observation converts the underlying [θ, θ̇] state to an observation
func observation(th, thdot float64) *mat.VecDense {
	return mat.NewVecDense(ObservationDims, []float64{math.Cos(th),
		math.Sin(th), thdot})
}

// normalizeAngle normalizes the pendulum angle to [-π, π)
func normalizeAngle(th float64) float64 {
	return floatutils.Wrap(th, -AngleBound, AngleBound)
}

// validateState validates the state to ensure that the angular velocity
// is within the environmental limits
func validateState(state mat.Vector, speedBounds r1.Interval) error {
	if state.Len() != 2 {
		return fmt.Errorf("validateState: invalid state dimensions "+
			"\n\twant(2) \n\thave(%v)", state.Len())
	}

	thdotWithinBounds := state.AtVec(1) <= speedBounds.Max &&
		state.AtVec(1) >= speedBounds.Min
	if !thdotWithinBounds {
		return fmt.Errorf("validateState: theta dot is not within bounds %v",
			speedBounds)
	}
	return nil
}
