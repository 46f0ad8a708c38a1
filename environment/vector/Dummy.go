package vector

import (
	"fmt"

	ts "github.com/samuelfneumann/simsac/timestep"
	"gonum.org/v1/gonum/mat"
)

// Dummy steps its environments sequentially
type Dummy struct {
	envs
}

// NewDummy returns a new Dummy with one environment per factory
func NewDummy(factories []Factory) (*Dummy, error) {
	e, err := build(factories)
	if err != nil {
		return nil, fmt.Errorf("newDummy: %v", err)
	}
	return &Dummy{e}, nil
}

// Len returns the number of environments
func (d *Dummy) Len() int {
	return len(d.envs)
}

// Reset resets the environments with the given ids
func (d *Dummy) Reset(ids []int) ([]ts.TimeStep, error) {
	ids, err := d.ids(ids)
	if err != nil {
		return nil, fmt.Errorf("reset: %v", err)
	}

	steps := make([]ts.TimeStep, len(ids))
	for i, id := range ids {
		steps[i], err = d.envs[id].Reset()
		if err != nil {
			return nil, fmt.Errorf("reset: environment %v: %v", id, err)
		}
	}
	return steps, nil
}

// Step takes action i in the environment with id ids[i]
func (d *Dummy) Step(actions []*mat.VecDense, ids []int) ([]ts.TimeStep,
	error) {
	ids, err := d.ids(ids)
	if err != nil {
		return nil, fmt.Errorf("step: %v", err)
	}
	if len(actions) != len(ids) {
		return nil, fmt.Errorf("step: actions \n\twant(%v) \n\thave(%v)",
			len(ids), len(actions))
	}

	steps := make([]ts.TimeStep, len(ids))
	for i, id := range ids {
		steps[i], _, err = d.envs[id].Step(actions[i])
		if err != nil {
			return nil, fmt.Errorf("step: environment %v: %v", id, err)
		}
	}
	return steps, nil
}

// Render renders the environments with the given ids
func (d *Dummy) Render(ids []int) error {
	ids, err := d.ids(ids)
	if err != nil {
		return fmt.Errorf("render: %v", err)
	}
	for _, id := range ids {
		if err := d.render(id); err != nil {
			return fmt.Errorf("render: environment %v: %v", id, err)
		}
	}
	return nil
}

// Close closes all environments
func (d *Dummy) Close() error {
	return d.close()
}
