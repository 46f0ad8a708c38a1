package vector

import (
	"errors"
	"strings"
	"testing"

	"github.com/samuelfneumann/simsac/environment"
	"github.com/samuelfneumann/simsac/environment/classiccontrol/pendulum"
	ts "github.com/samuelfneumann/simsac/timestep"
	"gonum.org/v1/gonum/mat"
)

func pendulums(n int) []Factory {
	factories := make([]Factory, n)
	for i := range factories {
		seed := uint64(i)
		factories[i] = func() (environment.Environment, error) {
			env, _, err := pendulum.New(pendulum.NewDefaultSwingUp(seed), 0.99)
			return env, err
		}
	}
	return factories
}

func TestDummyMatchesParallel(t *testing.T) {
	dummy, err := NewDummy(pendulums(4))
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := NewParallel(pendulums(4))
	if err != nil {
		t.Fatal(err)
	}

	for _, v := range []Env{dummy, parallel} {
		if v.Len() != 4 {
			t.Errorf("len \n\twant(4) \n\thave(%v)", v.Len())
		}
	}

	dSteps, err := dummy.Reset(nil)
	if err != nil {
		t.Fatal(err)
	}
	pSteps, err := parallel.Reset(nil)
	if err != nil {
		t.Fatal(err)
	}

	for step := 0; step < 10; step++ {
		for i := range dSteps {
			if !mat.Equal(dSteps[i].Observation, pSteps[i].Observation) {
				t.Fatalf("step %v env %v: observations differ", step, i)
			}
		}

		actions := make([]*mat.VecDense, 4)
		for i := range actions {
			actions[i] = mat.NewVecDense(1, []float64{float64(i) - 1.5})
		}
		if dSteps, err = dummy.Step(actions, nil); err != nil {
			t.Fatal(err)
		}
		if pSteps, err = parallel.Step(actions, nil); err != nil {
			t.Fatal(err)
		}
	}
}

func TestStepSubset(t *testing.T) {
	for _, newEnv := range []func([]Factory) (Env, error){
		func(f []Factory) (Env, error) { return NewDummy(f) },
		func(f []Factory) (Env, error) { return NewParallel(f) },
	} {
		v, err := newEnv(pendulums(3))
		if err != nil {
			t.Fatal(err)
		}

		ids := []int{2, 0}
		actions := []*mat.VecDense{
			mat.NewVecDense(1, []float64{0}),
			mat.NewVecDense(1, []float64{0}),
		}
		steps, err := v.Step(actions, ids)
		if err != nil {
			t.Fatal(err)
		}
		if len(steps) != 2 {
			t.Fatalf("steps \n\twant(2) \n\thave(%v)", len(steps))
		}

		envs := Environments(v)
		for i, id := range ids {
			want := envs[id].CurrentTimeStep().Observation
			if !mat.Equal(want, steps[i].Observation) {
				t.Errorf("step %v should come from environment %v", i, id)
			}
		}
		if envs[1].CurrentTimeStep().Number != 0 {
			t.Errorf("environment 1 should not have been stepped")
		}

		if _, err := v.Step(actions, []int{3, 0}); err == nil {
			t.Errorf("out of range id should return an error")
		}
		if _, err := v.Step(actions[:1], ids); err == nil {
			t.Errorf("mismatched actions should return an error")
		}
		if err := v.Close(); err != nil {
			t.Error(err)
		}
	}
}

func TestNoFactories(t *testing.T) {
	if _, err := NewDummy(nil); err == nil {
		t.Errorf("no factories should return an error")
	}
}

var errBroken = errors.New("broken environment")

// broken is an Environment whose Reset and Step always fail
type broken struct {
	environment.Environment
}

func (broken) Reset() (ts.TimeStep, error) {
	return ts.TimeStep{}, errBroken
}

func (broken) Step(*mat.VecDense) (ts.TimeStep, bool, error) {
	return ts.TimeStep{}, true, errBroken
}

func TestEnvironmentErrors(t *testing.T) {
	// Environment 2 of 4 fails
	factories := pendulums(4)
	working := factories[2]
	factories[2] = func() (environment.Environment, error) {
		env, err := working()
		return broken{env}, err
	}

	actions := make([]*mat.VecDense, 4)
	for i := range actions {
		actions[i] = mat.NewVecDense(1, nil)
	}

	tests := []struct {
		name string
		op   func(Env) error
	}{
		{"reset", func(v Env) error {
			_, err := v.Reset(nil)
			return err
		}},
		{"step", func(v Env) error {
			_, err := v.Step(actions, nil)
			return err
		}},
		{"step subset", func(v Env) error {
			_, err := v.Step(actions[:2], []int{0, 2})
			return err
		}},
	}

	for _, newEnv := range []func([]Factory) (Env, error){
		func(f []Factory) (Env, error) { return NewDummy(f) },
		func(f []Factory) (Env, error) { return NewParallel(f) },
	} {
		v, err := newEnv(factories)
		if err != nil {
			t.Fatal(err)
		}
		for _, test := range tests {
			err := test.op(v)
			if err == nil {
				t.Errorf("%T %v: error should be returned", v, test.name)
				continue
			}
			if !strings.Contains(err.Error(), "environment 2") ||
				!strings.Contains(err.Error(), errBroken.Error()) {
				t.Errorf("%T %v: unexpected error %v", v, test.name, err)
			}
		}

		// Working environments are unaffected
		if _, err := v.Step(actions[:1], []int{3}); err != nil {
			t.Errorf("%T: %v", v, err)
		}
		v.Close()
	}
}
