package environment

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SpecType is the kind of data a Spec describes
type SpecType int

const (
	Action SpecType = iota
	Observation
	Discount
)

func (t SpecType) String() string {
	switch t {
	case Action:
		return "action"
	case Observation:
		return "observation"
	case Discount:
		return "discount"
	}
	return fmt.Sprintf("SpecType(%d)", int(t))
}

// Spec describes the bounds of continuous actions, observations, or
// discounts of an environment, one bound per dimension
type Spec struct {
	Type       SpecType
	LowerBound *mat.VecDense
	UpperBound *mat.VecDense
}

// NewSpec returns a new Spec with bounds [low[i], high[i]] in dimension
// i. NewSpec panics if low and high differ in length.
func NewSpec(t SpecType, low, high []float64) Spec {
	if len(low) != len(high) {
		panic(fmt.Sprintf("newSpec: %v bounds differ in length "+
			"\n\twant(%v) \n\thave(%v)", t, len(low), len(high)))
	}
	return Spec{
		Type:       t,
		LowerBound: mat.NewVecDense(len(low), append([]float64(nil), low...)),
		UpperBound: mat.NewVecDense(len(high),
			append([]float64(nil), high...)),
	}
}

// NewUnboundedSpec returns a new Spec of dims dimensions without bounds
func NewUnboundedSpec(t SpecType, dims int) Spec {
	low, high := make([]float64, dims), make([]float64, dims)
	for i := range low {
		low[i], high[i] = math.Inf(-1), math.Inf(1)
	}
	return NewSpec(t, low, high)
}

// Dims returns the number of dimensions described by the Spec
func (s Spec) Dims() int {
	return s.LowerBound.Len()
}

// Range returns the lower and upper bound of the first dimension. For
// actions this is the range that policies squash their outputs into.
func (s Spec) Range() (float64, float64) {
	return s.LowerBound.AtVec(0), s.UpperBound.AtVec(0)
}
