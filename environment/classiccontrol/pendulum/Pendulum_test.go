package pendulum

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestEpisodeLength(t *testing.T) {
	p, _, err := New(NewDefaultSwingUp(1), 0.99)
	if err != nil {
		t.Fatal(err)
	}

	action := mat.NewVecDense(1, []float64{1.0})
	steps := 0
	for {
		step, last, err := p.Step(action)
		if err != nil {
			t.Fatal(err)
		}
		steps++

		if step.Reward > 0 || step.Reward < NewDefaultSwingUp(0).Min() {
			t.Errorf("reward %v out of range", step.Reward)
		}
		if last {
			if !step.TimeOut() {
				t.Errorf("episode should end by timeout")
			}
			break
		}
	}

	if steps != DefaultEpisodeSteps {
		t.Errorf("episode length: \n\twant(%v) \n\thave(%v)",
			DefaultEpisodeSteps, steps)
	}
}

func TestObservationBounds(t *testing.T) {
	p, step, err := New(NewDefaultSwingUp(3), 0.99)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 100; i++ {
		obs := step.Observation
		cos, sin := obs.AtVec(0), obs.AtVec(1)
		if math.Abs(cos*cos+sin*sin-1) > 1e-9 {
			t.Errorf("cos² + sin² != 1 at step %v", i)
		}
		if math.Abs(obs.AtVec(2)) > SpeedBound {
			t.Errorf("speed out of bounds: %v", obs.AtVec(2))
		}
		step, _, err = p.Step(mat.NewVecDense(1, []float64{5.0}))
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestSimulateMatchesStep(t *testing.T) {
	p, step, err := New(NewDefaultSwingUp(7), 0.99)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 50; i++ {
		torque := math.Sin(float64(i))
		obs := mat.VecDenseCopyOf(step.Observation).RawVector().Data

		simObs, simReward := p.Simulate(obs, []float64{torque})
		step, _, err = p.Step(mat.NewVecDense(1, []float64{torque}))
		if err != nil {
			t.Fatal(err)
		}

		for j := range simObs {
			if math.Abs(simObs[j]-step.Observation.AtVec(j)) > 1e-9 {
				t.Errorf("step %v: simulated observation %v differs: "+
					"\n\twant(%v) \n\thave(%v)", i, j, step.Observation.AtVec(j),
					simObs[j])
			}
		}
		if math.Abs(simReward-step.Reward) > 1e-9 {
			t.Errorf("step %v: simulated reward \n\twant(%v) \n\thave(%v)", i,
				step.Reward, simReward)
		}
	}
}

func TestInvalidAction(t *testing.T) {
	p, _, err := New(NewDefaultSwingUp(1), 0.99)
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := p.Step(mat.NewVecDense(2, nil)); err == nil {
		t.Errorf("step should fail for 2-dimensional actions")
	}
}
