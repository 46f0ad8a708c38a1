package pendulum

import (
	"math"

	"github.com/samuelfneumann/simsac/environment"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

// DefaultEpisodeSteps is the default number of steps in a SwingUp episode
const DefaultEpisodeSteps int = 200

// SwingUp implements a task where the agent must swing the pendulum up
// and hold it in a vertical position. Rewards are the negative
// quadratic cost -(θ² + 0.1θ̇² + 0.001u²), which is 0 at the goal.
type SwingUp struct {
	environment.Starter
	environment.Ender
}

// NewSwingUp creates and returns a new SwingUp task
func NewSwingUp(s environment.Starter, maxSteps int) *SwingUp {
	ender := environment.NewStepLimit(maxSteps)
	return &SwingUp{s, ender}
}

// NewDefaultSwingUp returns a SwingUp task that starts the pendulum
// uniformly with θ ∈ [-π, π] and θ̇ ∈ [-1, 1].
func NewDefaultSwingUp(seed uint64) *SwingUp {
	bounds := []r1.Interval{
		{Min: -math.Pi, Max: math.Pi},
		{Min: -1, Max: 1},
	}
	return NewSwingUp(environment.NewUniformStarter(bounds, seed),
		DefaultEpisodeSteps)
}

// GetReward returns the reward for a transition between two
// [θ, θ̇] states under a torque action
func (s *SwingUp) GetReward(state, action, _ mat.Vector) float64 {
	th, thdot := normalizeAngle(state.AtVec(0)), state.AtVec(1)
	u := action.AtVec(0)

	return -(th*th + 0.1*thdot*thdot + 0.001*u*u)
}

// AtGoal determines whether or not the current state is the goal state
func (s *SwingUp) AtGoal(state mat.Matrix) bool {
	return state.At(0, 0) == 0
}

// Min returns the minimum possible reward
func (s *SwingUp) Min() float64 {
	return -(math.Pi*math.Pi + 0.1*SpeedBound*SpeedBound +
		0.001*TorqueBound*TorqueBound)
}

// Max returns the maximum possible reward
func (s *SwingUp) Max() float64 {
	return 0.0
}
