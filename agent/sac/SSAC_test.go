package sac

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	"github.com/samuelfneumann/simsac/expreplay"
	"github.com/samuelfneumann/simsac/initwfn"
	"golang.org/x/exp/rand"
)

const (
	obsDim = 3
	actDim = 2
	batch  = 4
)

// stubModel predicts the observation unchanged with zero reward
type stubModel struct {
	trained int
}

func (s *stubModel) Train(expreplay.Batch) (map[string]float64, error) {
	s.trained++
	return map[string]float64{"total": 1}, nil
}

func (s *stubModel) Predict(obs, act []float64) ([]float64, []float64,
	error) {
	return append([]float64(nil), obs...), make([]float64, len(obs)/obsDim),
		nil
}

func (s *stubModel) Name() string { return "stub" }

func (s *stubModel) Close() error { return nil }

func newConfig(t *testing.T) Config {
	t.Helper()
	initFn, err := initwfn.New(initwfn.GlorotU, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	return Config{
		ObsDim:     obsDim,
		ActDim:     actDim,
		ActionLow:  -2,
		ActionHigh: 2,
		Hidden:     []int{8, 8},
		ActorLR:    1e-3,
		CriticLR:   1e-3,
		Init:       initFn,
		Gamma:      0.99,
		Tau:        0.005,
		Alpha:      0.2,
		NStep:      2,
		BatchSize:  batch,
		Seed:       1,
	}
}

func newReplay(t *testing.T, n int) *expreplay.Buffer {
	t.Helper()
	b, err := expreplay.Config{MinReplayCapacity: 1,
		MaxReplayCapacity: 100}.Create(obsDim, actDim, 2)
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewSource(3))
	obs := make([]float64, obsDim)
	for i := 0; i < n; i++ {
		next := make([]float64, obsDim)
		for j := range next {
			next[j] = rng.NormFloat64()
		}
		act := []float64{rng.Float64()*4 - 2, rng.Float64()*4 - 2}
		if err := b.AddRaw(obs, act, rng.NormFloat64(), i%10 == 9,
			next); err != nil {
			t.Fatal(err)
		}
		obs = next
	}
	return b
}

func TestActRange(t *testing.T) {
	agent, err := New(newConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer agent.Close()

	obs := make([]float64, 5*obsDim)
	for i := range obs {
		obs[i] = float64(i) - 7
	}
	act, err := agent.Act(obs, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(act) != 5*actDim {
		t.Fatalf("number of actions \n\twant(%v) \n\thave(%v)", 5*actDim,
			len(act))
	}
	for _, a := range act {
		if a < -2 || a > 2 {
			t.Errorf("action %v outside of [-2, 2]", a)
		}
	}
}

func TestEvalDeterministic(t *testing.T) {
	agent, err := New(newConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer agent.Close()

	obs := []float64{0.1, -0.3, 0.5}
	agent.Eval()
	if !agent.IsEval() {
		t.Fatal("agent should be in evaluation mode")
	}
	first, err := agent.Act(obs, 1)
	if err != nil {
		t.Fatal(err)
	}
	second, err := agent.Act(obs, 1)
	if err != nil {
		t.Fatal(err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("evaluation actions differ: %v, %v", first, second)
		}
	}

	agent.Train()
	third, err := agent.Act(obs, 1)
	if err != nil {
		t.Fatal(err)
	}
	if third[0] == first[0] && third[1] == first[1] {
		t.Errorf("training action should be stochastic")
	}
}

func TestUpdate(t *testing.T) {
	agent, err := New(newConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer agent.Close()

	buf := newReplay(t, 50)
	for i := 0; i < 5; i++ {
		losses, err := agent.Update(batch, buf)
		if err != nil {
			t.Fatal(err)
		}
		for _, name := range []string{"loss/actor", "loss/critic1",
			"loss/critic2"} {
			loss, ok := losses[name]
			if !ok {
				t.Fatalf("missing loss %v", name)
			}
			if math.IsNaN(loss) || math.IsInf(loss, 0) {
				t.Errorf("%v is not finite: %v", name, loss)
			}
		}
	}
	if agent.Updates() != 5 {
		t.Errorf("updates \n\twant(5) \n\thave(%v)", agent.Updates())
	}
	if agent.ModelBuffer() != nil {
		t.Errorf("agent without a world model should have no model buffer")
	}

	if _, err := agent.Update(batch+1, buf); err == nil {
		t.Errorf("update with the wrong batch size should fail")
	}

	wide, err := expreplay.Config{MinReplayCapacity: 1,
		MaxReplayCapacity: 10}.Create(obsDim+1, actDim, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := agent.Update(batch, wide); err == nil {
		t.Errorf("update from a buffer of the wrong size should fail")
	}

	c1, c2 := agent.critics[0].solver, agent.critics[1].solver
	if c1 == c2 || c1.Solver == c2.Solver || c1.Config != c2.Config {
		t.Errorf("critics should have separate solvers with equal " +
			"configurations")
	}
}

func TestUpdateWithModel(t *testing.T) {
	c := newConfig(t)
	model := &stubModel{}
	c.Model = model
	c.TrainSimulatorStep = 2
	c.SimulatorBatchSize = 8
	c.MaxUpdateStep = 1
	c.NSimulatorStep = 6
	c.ModelRatio = 0.5
	c.ModelBufferSize = 10

	agent, err := New(c)
	if err != nil {
		t.Fatal(err)
	}
	defer agent.Close()

	buf := newReplay(t, 50)

	// Before MaxUpdateStep only real data is used
	losses, err := agent.Update(batch, buf)
	if err != nil {
		t.Fatal(err)
	}
	if agent.ModelBuffer().Len() != 0 {
		t.Errorf("model buffer should be empty before update %v",
			c.MaxUpdateStep)
	}
	if _, ok := losses["loss/model/total"]; !ok {
		t.Errorf("missing world model loss")
	}

	for i := 0; i < 2; i++ {
		if _, err := agent.Update(batch, buf); err != nil {
			t.Fatal(err)
		}
	}
	if model.trained != 3*c.TrainSimulatorStep {
		t.Errorf("model training steps \n\twant(%v) \n\thave(%v)",
			3*c.TrainSimulatorStep, model.trained)
	}
	if agent.ModelBuffer().Len() != c.ModelBufferSize {
		t.Errorf("model buffer size \n\twant(%v) \n\thave(%v)",
			c.ModelBufferSize, agent.ModelBuffer().Len())
	}

	sim := agent.ModelBuffer().Batch([]int{0})
	if sim.Done[0] || sim.Rew[0] != 0 {
		t.Errorf("simulated transition should be non-terminal with the "+
			"predicted reward: %+v", sim)
	}
}

func TestGob(t *testing.T) {
	agent, err := New(newConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer agent.Close()
	if _, err := agent.Update(batch, newReplay(t, 20)); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(agent); err != nil {
		t.Fatal(err)
	}

	c := newConfig(t)
	c.Seed = 10
	decoded, err := New(c)
	if err != nil {
		t.Fatal(err)
	}
	defer decoded.Close()
	if err := gob.NewDecoder(&buf).Decode(decoded); err != nil {
		t.Fatal(err)
	}

	agent.Eval()
	decoded.Eval()
	obs := []float64{1, 2, 3}
	want, err := agent.Act(obs, 1)
	if err != nil {
		t.Fatal(err)
	}
	have, err := decoded.Act(obs, 1)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if math.Abs(want[i]-have[i]) > 1e-12 {
			t.Errorf("decoded action \n\twant(%v) \n\thave(%v)", want, have)
		}
	}
	if decoded.Updates() != 1 {
		t.Errorf("decoded updates \n\twant(1) \n\thave(%v)", decoded.Updates())
	}
}
