package worldmodel

import (
	"math"
	"testing"

	"github.com/samuelfneumann/simsac/expreplay"
	"github.com/samuelfneumann/simsac/initwfn"
	"golang.org/x/exp/rand"
)

const (
	obsDim = 3
	actDim = 2
)

// linearSim moves the observation by the sum of the action and rewards
// the negative squared norm of the observation
type linearSim struct{}

func (linearSim) Simulate(obs, act []float64) ([]float64, float64) {
	next := make([]float64, len(obs))
	r := 0.0
	for i := range obs {
		next[i] = obs[i] + act[0] + act[1]
		r -= obs[i] * obs[i]
	}
	return next, r
}

func newConfig(t *testing.T) Config {
	t.Helper()
	initFn, err := initwfn.New(initwfn.GlorotU, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	return Config{
		ObsDim:          obsDim,
		ActDim:          actDim,
		LatentDim:       4,
		HiddenDim:       16,
		LR:              1e-2,
		ILLR:            1e-2,
		TrainBatch:      32,
		PredictBatch:    5,
		LossWeightTrans: 1,
		LossWeightAE:    1,
		LossWeightRew:   1,
		NoiseObs:        0.01,
		NoiseRew:        0.01,
		BoostStages:     2,
		Init:            initFn,
		Seed:            1,
	}
}

// batch returns n transitions of linearSim from random observations
// and actions
func batch(rng *rand.Rand, n int) expreplay.Batch {
	b := expreplay.Batch{Size: n, ObsDim: obsDim, ActDim: actDim}
	var sim linearSim
	for i := 0; i < n; i++ {
		obs := make([]float64, obsDim)
		for j := range obs {
			obs[j] = rng.Float64()*2 - 1
		}
		act := []float64{rng.Float64()*2 - 1, rng.Float64()*2 - 1}
		next, r := sim.Simulate(obs, act)

		b.Obs = append(b.Obs, obs...)
		b.Act = append(b.Act, act...)
		b.ObsNext = append(b.ObsNext, next...)
		b.Rew = append(b.Rew, r)
		b.Done = append(b.Done, false)
	}
	return b
}

func TestModels(t *testing.T) {
	for _, name := range Names() {
		c := newConfig(t)
		m, err := New(name, c)
		if err != nil {
			t.Fatalf("%v: %v", name, err)
		}
		if m.Name() != name {
			t.Errorf("name \n\twant(%v) \n\thave(%v)", name, m.Name())
		}

		rng := rand.New(rand.NewSource(2))
		train := batch(rng, c.TrainBatch)
		var first, last float64
		for i := 0; i < 200; i++ {
			losses, err := m.Train(train)
			if err != nil {
				t.Fatalf("%v: %v", name, err)
			}
			total, ok := losses["total"]
			if !ok {
				t.Fatalf("%v: no total loss in %v", name, losses)
			}
			if math.IsNaN(total) || math.IsInf(total, 0) {
				t.Fatalf("%v: loss is not finite: %v", name, losses)
			}
			if i == 0 {
				first = total
			}
			last = total
		}
		if last >= first {
			t.Errorf("%v: training did not decrease the loss: %v -> %v", name,
				first, last)
		}

		test := batch(rng, c.PredictBatch)
		obsNext, rew, err := m.Predict(test.Obs, test.Act)
		if err != nil {
			t.Fatalf("%v: %v", name, err)
		}
		if len(obsNext) != c.PredictBatch*obsDim || len(rew) != c.PredictBatch {
			t.Errorf("%v: prediction sizes (%v, %v)", name, len(obsNext),
				len(rew))
		}

		if _, err := m.Train(batch(rng, c.TrainBatch+1)); err == nil {
			t.Errorf("%v: training on the wrong batch size should fail", name)
		}
		if err := m.Close(); err != nil {
			t.Errorf("%v: %v", name, err)
		}
	}
}

func TestNew(t *testing.T) {
	c := newConfig(t)
	if _, err := New("DynaQ", c); err == nil {
		t.Errorf("unknown model should return an error")
	}

	c.WhiteBox = true
	if _, err := New(PriorGBM, c); err == nil {
		t.Errorf("white-box PriorGBM without a simulator should fail")
	}

	c.LatentDim = 0
	if _, err := New(NODAE, c); err == nil {
		t.Errorf("invalid config should return an error")
	}
}

func TestWhiteBoxPrior(t *testing.T) {
	c := newConfig(t)
	c.WhiteBox = true
	c.Simulator = linearSim{}
	c.BoostStages = 0
	c.NoiseObs, c.NoiseRew = 0, 0

	m, err := New(PriorGBM, c)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	rng := rand.New(rand.NewSource(4))
	losses, err := m.Train(batch(rng, c.TrainBatch))
	if err != nil {
		t.Fatal(err)
	}
	if losses["prior"] != 0 {
		t.Errorf("true dynamics should have no error, have %v",
			losses["prior"])
	}

	test := batch(rng, c.PredictBatch)
	obsNext, rew, err := m.Predict(test.Obs, test.Act)
	if err != nil {
		t.Fatal(err)
	}
	for i := range obsNext {
		if obsNext[i] != test.ObsNext[i] {
			t.Fatalf("next observation \n\twant(%v) \n\thave(%v)",
				test.ObsNext, obsNext)
		}
	}
	for i := range rew {
		if rew[i] != test.Rew[i] {
			t.Fatalf("reward \n\twant(%v) \n\thave(%v)", test.Rew, rew)
		}
	}
}

func TestRidgePrior(t *testing.T) {
	r := newRidgePrior(obsDim, actDim)
	rng := rand.New(rand.NewSource(5))
	b := batch(rng, 64)

	// Rewards of linearSim are quadratic, fit next observations only
	targets := make([]float64, 0, b.Size*(obsDim+1))
	for i := 0; i < b.Size; i++ {
		targets = append(targets, b.ObsNextRow(i)...)
		targets = append(targets, 0)
	}
	if err := r.fit(b.Obs, b.Act, targets, b.Size); err != nil {
		t.Fatal(err)
	}

	pred, err := r.predict(b.Obs, b.Act, b.Size)
	if err != nil {
		t.Fatal(err)
	}
	for i := range pred {
		if math.Abs(pred[i]-targets[i]) > 1e-2 {
			t.Fatalf("ridge prediction %v \n\twant(%v) \n\thave(%v)", i,
				targets[i], pred[i])
		}
	}
}

func TestSplitTargets(t *testing.T) {
	obsNext, rew := splitTargets([]float64{1, 2, 3, 4, 5, 6}, 2)
	want := []float64{1, 2, 4, 5}
	for i := range want {
		if obsNext[i] != want[i] {
			t.Errorf("observations \n\twant(%v) \n\thave(%v)", want, obsNext)
		}
	}
	if rew[0] != 3 || rew[1] != 6 {
		t.Errorf("rewards \n\twant([3 6]) \n\thave(%v)", rew)
	}
}
