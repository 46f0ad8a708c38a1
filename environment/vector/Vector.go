// Package vector implements vectorized environments, which step a
// number of environments together.
package vector

import (
	"fmt"

	"github.com/samuelfneumann/simsac/environment"
	ts "github.com/samuelfneumann/simsac/timestep"
	"gonum.org/v1/gonum/mat"
)

// Factory creates a single environment of a vectorized environment
type Factory func() (environment.Environment, error)

// Env is a vectorized environment. Each method takes a list of ids
// selecting the environments to act on, a nil list selects all
// environments. Returned timesteps follow the order of ids.
type Env interface {
	Len() int
	Reset(ids []int) ([]ts.TimeStep, error)
	Step(actions []*mat.VecDense, ids []int) ([]ts.TimeStep, error)
	Render(ids []int) error
	Close() error
}

// envs holds the environments shared by all vectorized environments
type envs []environment.Environment

// build creates one environment per factory
func build(factories []Factory) (envs, error) {
	if len(factories) == 0 {
		return nil, fmt.Errorf("build: no environment factories")
	}

	e := make(envs, len(factories))
	for i, f := range factories {
		env, err := f()
		if err != nil {
			e[:i].close()
			return nil, fmt.Errorf("build: environment %v: %v", i, err)
		}
		e[i] = env
	}
	return e, nil
}

// ids returns the ids to act on, all ids if ids is nil
func (e envs) ids(ids []int) ([]int, error) {
	if ids == nil {
		ids = make([]int, len(e))
		for i := range ids {
			ids[i] = i
		}
		return ids, nil
	}

	for _, id := range ids {
		if id < 0 || id >= len(e) {
			return nil, fmt.Errorf("ids: id %v out of range [0, %v)", id,
				len(e))
		}
	}
	return ids, nil
}

// render renders environment id if it can be rendered
func (e envs) render(id int) error {
	if r, ok := e[id].(environment.Renderer); ok {
		return r.Render()
	}
	return nil
}

func (e envs) close() error {
	var firstErr error
	for _, env := range e {
		if err := environment.Close(env); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Environments returns the underlying environments of a vectorized
// environment created in this package
func Environments(v Env) []environment.Environment {
	switch v := v.(type) {
	case *Dummy:
		return v.envs
	case *Parallel:
		return v.envs
	}
	return nil
}
