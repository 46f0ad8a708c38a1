package vector

import (
	"fmt"

	ts "github.com/samuelfneumann/simsac/timestep"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Parallel steps each of its environments in its own goroutine. The
// first error returned by any environment is returned.
type Parallel struct {
	envs
}

// NewParallel returns a new Parallel with one environment per factory
func NewParallel(factories []Factory) (*Parallel, error) {
	e, err := build(factories)
	if err != nil {
		return nil, fmt.Errorf("newParallel: %v", err)
	}
	return &Parallel{e}, nil
}

// Len returns the number of environments
func (p *Parallel) Len() int {
	return len(p.envs)
}

// Reset resets the environments with the given ids
func (p *Parallel) Reset(ids []int) ([]ts.TimeStep, error) {
	ids, err := p.ids(ids)
	if err != nil {
		return nil, fmt.Errorf("reset: %v", err)
	}

	steps := make([]ts.TimeStep, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			step, err := p.envs[id].Reset()
			if err != nil {
				return fmt.Errorf("environment %v: %v", id, err)
			}
			steps[i] = step
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("reset: %v", err)
	}
	return steps, nil
}

// Step takes action i in the environment with id ids[i]
func (p *Parallel) Step(actions []*mat.VecDense, ids []int) ([]ts.TimeStep,
	error) {
	ids, err := p.ids(ids)
	if err != nil {
		return nil, fmt.Errorf("step: %v", err)
	}
	if len(actions) != len(ids) {
		return nil, fmt.Errorf("step: actions \n\twant(%v) \n\thave(%v)",
			len(ids), len(actions))
	}

	steps := make([]ts.TimeStep, len(ids))
	var g errgroup.Group
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			step, _, err := p.envs[id].Step(actions[i])
			if err != nil {
				return fmt.Errorf("environment %v: %v", id, err)
			}
			steps[i] = step
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("step: %v", err)
	}
	return steps, nil
}

// Render renders the environments with the given ids. Rendering is
// sequential so that frames are written in order.
func (p *Parallel) Render(ids []int) error {
	ids, err := p.ids(ids)
	if err != nil {
		return fmt.Errorf("render: %v", err)
	}
	for _, id := range ids {
		if err := p.render(id); err != nil {
			return fmt.Errorf("render: environment %v: %v", id, err)
		}
	}
	return nil
}

// Close closes all environments
func (p *Parallel) Close() error {
	return p.close()
}
