package envconfig

import (
	"testing"

	"github.com/samuelfneumann/simsac/environment"
	"github.com/samuelfneumann/simsac/environment/box2d/carracing"
	"github.com/samuelfneumann/simsac/environment/classiccontrol/pendulum"
	"gonum.org/v1/gonum/mat"
)

func TestMake(t *testing.T) {
	for _, task := range []string{CarRacing, Pendulum} {
		env, err := Make(task, 3, Options{Discount: 0.99})
		if err != nil {
			t.Fatalf("task %v: %v", task, err)
		}
		if _, ok := RewardThreshold(task); !ok {
			t.Errorf("task %v should have a reward threshold", task)
		}
		if env.DiscountSpec().LowerBound.AtVec(0) != 0.99 {
			t.Errorf("task %v: discount \n\twant(0.99) \n\thave(%v)", task,
				env.DiscountSpec().LowerBound.AtVec(0))
		}
	}
}

func TestFactoriesSeeds(t *testing.T) {
	factories := Factories(Pendulum, 3, 10, Options{Discount: 0.99})
	if len(factories) != 3 {
		t.Fatalf("factories \n\twant(3) \n\thave(%v)", len(factories))
	}

	// Factory i is seeded with seed+i
	for i, f := range factories {
		env, err := f()
		if err != nil {
			t.Fatal(err)
		}
		want, err := Make(Pendulum, uint64(10+i), Options{Discount: 0.99})
		if err != nil {
			t.Fatal(err)
		}
		have := env.CurrentTimeStep().Observation
		if !mat.Equal(have, want.CurrentTimeStep().Observation) {
			t.Errorf("factory %v: start state \n\twant(%v) \n\thave(%v)", i,
				mat.Formatted(want.CurrentTimeStep().Observation.T()),
				mat.Formatted(have.T()))
		}
	}
}

func TestMakeRenderDir(t *testing.T) {
	dir := t.TempDir()
	env, err := Make(CarRacing, 0, Options{Discount: 1, RenderDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if err := env.(*carracing.CarRacing).Render(); err != nil {
		t.Fatal(err)
	}
}

func TestBackend(t *testing.T) {
	if _, err := Make("Acrobot-v1", 0, Options{Discount: 1}); err == nil {
		t.Errorf("tasks without a backend should return an error")
	}
	if _, err := Make(Pendulum, 0, Options{Discount: 1, Gym: true}); err == nil {
		t.Errorf("forcing a missing backend should return an error")
	}

	var tasks []string
	RegisterBackend(func(task string, discount float64,
		seed uint64) (environment.Environment, error) {
		tasks = append(tasks, task)
		env, _, err := pendulum.New(pendulum.NewDefaultSwingUp(seed), discount)
		return env, err
	})
	t.Cleanup(func() { RegisterBackend(nil) })

	tests := []struct {
		task string
		gym  bool
	}{
		{"Acrobot-v1", false},
		{Pendulum, true},
		{CarRacing, false},
	}
	for _, test := range tests {
		if _, err := Make(test.task, 0, Options{Discount: 1,
			Gym: test.gym}); err != nil {
			t.Fatalf("task %v: %v", test.task, err)
		}
	}

	// Native tasks only reach the backend when it is forced
	if len(tasks) != 2 || tasks[0] != "Acrobot-v1" || tasks[1] != Pendulum {
		t.Errorf("backend tasks \n\twant([Acrobot-v1 %v]) \n\thave(%v)",
			Pendulum, tasks)
	}
}
