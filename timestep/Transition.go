package timestep

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Transition is a single (S, A, R, γ, S', done) tuple
type Transition struct {
	State     *mat.VecDense
	Action    *mat.VecDense
	Reward    float64
	Discount  float64
	NextState *mat.VecDense

	// Done is true if the episode ended on NextState, regardless of
	// whether it was cut off or ended in a terminal state
	Done bool
}

// NewTransition creates a Transition from the TimeStep in which an
// action was taken and the TimeStep that the action resulted in.
func NewTransition(step TimeStep, action *mat.VecDense,
	nextStep TimeStep) Transition {
	return Transition{
		State:     toVecDense(step.Observation),
		Action:    action,
		Reward:    nextStep.Reward,
		Discount:  nextStep.Discount,
		NextState: toVecDense(nextStep.Observation),
		Done:      nextStep.Last(),
	}
}

func toVecDense(v mat.Vector) *mat.VecDense {
	if vec, ok := v.(*mat.VecDense); ok {
		return vec
	}
	return mat.VecDenseCopyOf(v)
}

func (t Transition) String() string {
	return fmt.Sprintf("Transition | S: %v  |  A: %v  |  R: %.2f  |  "+
		"S': %v  |  Done: %v", mat.Formatted(t.State.T()),
		mat.Formatted(t.Action.T()), t.Reward, mat.Formatted(t.NextState.T()),
		t.Done)
}
